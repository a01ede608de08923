// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"healthtrack-go/internal/middleware"
	"healthtrack-go/internal/model"
	"healthtrack-go/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// viewerFrom 取出 AuthMiddleware 注入的请求方身份，失败时已写入响应。
func viewerFrom(c *gin.Context) (model.Viewer, bool) {
	value, exists := c.Get(middleware.ContextViewer)
	viewer, ok := value.(model.Viewer)
	if !exists || !ok || viewer.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "未认证用户或无法获取用户信息", "data": nil})
		return model.Viewer{}, false
	}
	return viewer, true
}

func currentUserFrom(c *gin.Context) (*service.CurrentUser, bool) {
	value, exists := c.Get(middleware.ContextCurrentUser)
	current, ok := value.(*service.CurrentUser)
	if !exists || !ok || current == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "未认证用户或无法获取用户信息", "data": nil})
		return nil, false
	}
	return current, true
}

// analysisStatus 将分析服务的错误映射为 HTTP 状态码和对外消息。
func analysisStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNoSymptoms):
		return http.StatusBadRequest, "At least one symptom is required"
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."
	case errors.Is(err, service.ErrQuotaExhausted):
		return http.StatusPaymentRequired, "AI credits exhausted. Please add credits to continue."
	case errors.Is(err, service.ErrMissingCredential):
		return http.StatusInternalServerError, service.ErrMissingCredential.Error()
	case errors.Is(err, service.ErrUpstream):
		return http.StatusInternalServerError, service.ErrUpstream.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

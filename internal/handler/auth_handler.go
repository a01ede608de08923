package handler

import (
	"errors"
	"net/http"

	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 处理 token 续期。登录与注册见 UserHandler。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// RefreshRequest 是续期请求体，只接受 typ=refresh 的 token。
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 用 refresh token 换取新的 access/refresh token 对，角色按档案重新读取。
// 响应结构与登录一致。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "refreshToken 不能为空"})
		return
	}

	access, refresh, err := h.userService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			log.Warnf("[AuthHandler] 拒绝续期: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "登录已失效，请重新登录"})
			return
		}
		log.Errorf("[AuthHandler] 续期失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "续期失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"token":        access,
			"refreshToken": refresh,
		},
	})
}

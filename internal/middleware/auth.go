// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"healthtrack-go/internal/service"
	"healthtrack-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// 认证中间件写入 gin 上下文的键。
const (
	ContextCurrentUser = "currentUser"
	ContextViewer      = "viewer"
	ContextClaims      = "claims"
)

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 认证失败时，浏览器请求（Accept 包含 text/html）被重定向到 loginPath，其余请求返回 401。
// 成功后把 *service.CurrentUser、model.Viewer 和 claims 存入上下文。
func AuthMiddleware(userService service.UserService, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := BearerToken(c)
		if !ok {
			reject(c, loginPath, "请求未包含有效的授权头")
			return
		}

		current, claims, err := userService.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			log.Warnf("[AuthMiddleware] 认证失败, path: %s, error: %v", c.Request.URL.Path, err)
			reject(c, loginPath, "无效或已过期的 token")
			return
		}

		c.Set(ContextCurrentUser, current)
		c.Set(ContextViewer, current.Viewer())
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// BearerToken 从 Authorization 请求头中提取 "Bearer <token>" 里的 token。
func BearerToken(c *gin.Context) (string, bool) {
	const bearerPrefix = "Bearer "
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	return tokenString, tokenString != ""
}

func reject(c *gin.Context, loginPath, message string) {
	if wantsHTML(c) && loginPath != "" {
		c.Redirect(http.StatusFound, loginPath)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

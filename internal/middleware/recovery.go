package middleware

import (
	"fmt"
	"net/http"

	"healthtrack-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// Recovery 捕获处理链中的 panic，以 {"error": <message>} 返回 500。
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		message := fmt.Sprint(recovered)
		if err, ok := recovered.(error); ok {
			message = err.Error()
		}
		log.Errorw("请求处理 panic",
			"panic", message,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": message})
	})
}

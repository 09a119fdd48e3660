package middleware

import (
	"runtime/debug"

	"mesa/pkg/logger"
	"mesa/pkg/response"

	"github.com/gin-gonic/gin"
)

// ErrorHandler 捕获panic，返回统一的服务器错误
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().WithField("path", c.Request.URL.Path).
					WithField("stack", string(debug.Stack())).
					Errorf("Panic recovered: %v", err)
				response.ServerError(c, "服务器内部错误")
				c.Abort()
			}
		}()

		c.Next()
	}
}

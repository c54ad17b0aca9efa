package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"course-registration/backend/pkg/response"
)

// Recovery 捕获 panic，记录堆栈后返回统一 500 响应
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("请求处理 panic",
					zap.Any("panic", r),
					zap.String("request_id", c.GetString(requestIDKey)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				if !c.Writer.Written() {
					response.InternalError(c)
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

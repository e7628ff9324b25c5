// Package middleware 提供 HTTP 中间件
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"fable-ai-api/internal/interfaces/http/dto"
	apperrors "fable-ai-api/pkg/errors"
	"fable-ai-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recovery Panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					fmt.Errorf("%v", err),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)

				dto.AbortWithDetail(c, http.StatusInternalServerError, "internal server error", &dto.ErrorDetail{
					ErrorCode: string(apperrors.CodeInternalError),
				})
			}
		}()

		c.Next()
	}
}

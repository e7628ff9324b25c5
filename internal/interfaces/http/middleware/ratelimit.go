// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"fable-ai-api/internal/application/ratelimit"
	"fable-ai-api/internal/interfaces/http/dto"
	apperrors "fable-ai-api/pkg/errors"
	"fable-ai-api/pkg/logger"
)

const (
	// ContextKeyRateLimit 限流决策在 gin.Context 中的键
	ContextKeyRateLimit = "rate_limit_decision"

	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// RequesterID 从代理头中识别请求方
//
// 取 X-Forwarded-For（为空时取 X-Real-IP）的第一个逗号分隔值，识别不到时为 anonymous。
func RequesterID(r *http.Request) string {
	raw := r.Header.Get("X-Forwarded-For")
	if raw == "" {
		raw = r.Header.Get("X-Real-IP")
	}
	first, _, _ := strings.Cut(raw, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return ratelimit.AnonymousRequester
	}
	return first
}

// RateLimit 按用途限流中间件，必须在请求体校验之前执行
func RateLimit(governor *ratelimit.Governor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if governor == nil {
			c.Next()
			return
		}

		purpose := governor.Purpose()
		requester := RequesterID(c.Request)

		ctx := logger.WithContext(c.Request.Context(), logger.RequesterIDKey, requester)
		ctx = logger.WithContext(ctx, logger.PurposeKey, string(purpose))
		c.Request = c.Request.WithContext(ctx)

		decision := governor.Check(ctx, ratelimit.Identity(purpose, requester))
		c.Set(ContextKeyRateLimit, decision)

		c.Header(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
		c.Header(HeaderRateLimitReset, strconv.Itoa(decision.ResetSeconds))

		if !decision.Allowed {
			c.Header(HeaderRetryAfter, strconv.Itoa(decision.RetryAfterSeconds))
			dto.AbortWithDetail(c, http.StatusTooManyRequests, "rate limit exceeded", &dto.ErrorDetail{
				ErrorCode: string(apperrors.CodeTooManyRequests),
				Details:   "retry after " + strconv.Itoa(decision.RetryAfterSeconds) + "s",
			})
			return
		}

		c.Next()
	}
}

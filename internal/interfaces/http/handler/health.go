package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"fable-ai-api/internal/application/ratelimit"
)

// readinessTimeout 就绪检查的整体超时
const readinessTimeout = 2 * time.Second

// HealthChecker 依赖健康检查
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	limits *ratelimit.Registry
	redis  HealthChecker
}

// NewHealthHandler 创建健康检查处理器，redis 为空表示未配置共享存储
func NewHealthHandler(limits *ratelimit.Registry, redis HealthChecker) *HealthHandler {
	return &HealthHandler{limits: limits, redis: redis}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Backend   string `json:"backend,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready 就绪检查接口
//
// 共享存储不可用时：本地降级策略下报告 degraded 但仍就绪，默认拒绝策略下不就绪。
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	limiter := &readinessCheck{Status: "missing"}
	redisCheck := &readinessCheck{Status: "disabled"}
	checks := map[string]*readinessCheck{
		"rate_limit": limiter,
		"redis":      redisCheck,
	}

	var failover bool
	if h != nil {
		if backend := h.limits.Backend(); backend != "" {
			limiter.Status = "ok"
			limiter.Backend = backend
			failover = h.limits.Failover()
			if h.limits.Degraded() {
				limiter.Status = "degraded"
			}
		}
	}

	var g errgroup.Group
	if h != nil && h.redis != nil {
		g.Go(func() error {
			start := time.Now()
			err := h.redis.HealthCheck(ctx)
			redisCheck.LatencyMs = time.Since(start).Milliseconds()
			switch {
			case err == nil:
				redisCheck.Status = "ok"
			case failover:
				redisCheck.Status = "degraded"
				redisCheck.Error = err.Error()
			default:
				redisCheck.Status = "error"
				redisCheck.Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	ready := limiter.Status != "missing" && redisCheck.Status != "error"
	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

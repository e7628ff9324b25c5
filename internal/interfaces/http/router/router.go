// Package router 提供 HTTP 路由配置
package router

import (
	"fable-ai-api/internal/application/ratelimit"
	"fable-ai-api/internal/config"
	"fable-ai-api/internal/interfaces/http/dto"
	"fable-ai-api/internal/interfaces/http/handler"
	"fable-ai-api/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Fable  *handler.FableHandler
	Speech *handler.SpeechHandler
	Health *handler.HealthHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limits   *ratelimit.Registry
}

// New 创建新的路由器
func New(cfg *config.Config, handlers Handlers, limits *ratelimit.Registry) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	dto.RegisterValidation()

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limits:   limits,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics(r.cfg.Observability.Metrics.Path))
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	if h := r.handlers.Health; h != nil {
		r.engine.GET("/health", h.Health)
		r.engine.GET("/ready", h.Ready)
		r.engine.GET("/live", h.Live)
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// 限流在请求体校验之前执行，非法请求同样占用额度
	api := r.engine.Group("/api")
	{
		if h := r.handlers.Fable; h != nil {
			api.POST("/fable", middleware.RateLimit(r.limits.For(ratelimit.PurposeFable)), h.Generate)
		}
		if h := r.handlers.Speech; h != nil {
			api.POST("/tts", middleware.RateLimit(r.limits.For(ratelimit.PurposeSpeech)), h.Synthesize)
		}
	}
}

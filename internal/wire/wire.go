//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"fable-ai-api/internal/application/fable"
	appspeech "fable-ai-api/internal/application/speech"
	"fable-ai-api/internal/config"
	"fable-ai-api/internal/infrastructure/llm"
	infraspeech "fable-ai-api/internal/infrastructure/speech"
	"fable-ai-api/internal/interfaces/http/handler"
	"fable-ai-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RateLimitSet,
		FableSet,
		SpeechSet,
		RouterSet,
	)
	return nil, nil, nil
}

// RateLimitSet 限流存储与限流器
var RateLimitSet = wire.NewSet(
	ProvideMemoryStore,
	ProvideRedisClient,
	ProvideRateLimitStore,
	ProvideRateLimitRegistry,
	ProvideRedisHealthChecker,
)

// FableSet 寓言生成
var FableSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideFableGenerator,
	wire.Bind(new(handler.FableGenerator), new(*fable.Generator)),
)

// SpeechSet 朗读
var SpeechSet = wire.NewSet(
	infraspeech.NewOpenAISynthesizer,
	wire.Bind(new(appspeech.Synthesizer), new(*infraspeech.OpenAISynthesizer)),
	ProvideSpeechService,
	wire.Bind(new(handler.SpeechSynthesizer), new(*appspeech.Service)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	handler.NewFableHandler,
	handler.NewSpeechHandler,
	handler.NewHealthHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

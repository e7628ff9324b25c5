package wire

import (
	"context"
	"fmt"
	"time"

	"fable-ai-api/internal/application/fable"
	"fable-ai-api/internal/application/ratelimit"
	appspeech "fable-ai-api/internal/application/speech"
	"fable-ai-api/internal/config"
	"fable-ai-api/internal/infrastructure/llm"
	"fable-ai-api/internal/infrastructure/persistence/redis"
	"fable-ai-api/internal/interfaces/http/handler"
	"fable-ai-api/pkg/logger"
)

// ProvideMemoryStore 提供进程内限流存储，退出时停止清理协程
func ProvideMemoryStore(cfg *config.Config) (*ratelimit.MemoryStore, func()) {
	store := ratelimit.NewMemoryStore(ratelimit.WithCleanupInterval(cfg.RateLimit.CleanupInterval))
	return store, store.Close
}

// ProvideRedisClient 提供共享限流存储客户端，未配置或配置非法时返回 nil
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func()) {
	if !cfg.RateLimit.Store.Configured() {
		return nil, func() {}
	}
	client, err := redis.NewClient(&cfg.RateLimit.Store)
	if err != nil {
		logger.Error(ctx, "invalid rate limit store config", err)
		return nil, func() {}
	}
	return client, func() {
		_ = client.Close()
	}
}

// ProvideRateLimitStore 按配置选择限流存储
func ProvideRateLimitStore(ctx context.Context, cfg *config.Config, local *ratelimit.MemoryStore, client *redis.Client) (ratelimit.Store, error) {
	mode, err := ratelimit.ParseFailureMode(cfg.RateLimit.OnStoreFailure)
	if err != nil {
		return nil, err
	}

	sel := ratelimit.Selection{
		Address:     cfg.RateLimit.Store.Address,
		Token:       cfg.RateLimit.Store.Token,
		FailureMode: mode,
		Local:       local,
		OpenShared: func(context.Context) (ratelimit.Store, error) {
			if client == nil {
				return nil, fmt.Errorf("redis client not initialized")
			}
			return redis.NewSlidingWindowStore(client, cfg.RateLimit.KeyPrefix), nil
		},
	}
	if client != nil {
		sel.Ping = client.Ping
	}
	return ratelimit.SelectStore(ctx, sel), nil
}

// ProvideRateLimitRegistry 提供各用途的限流器
func ProvideRateLimitRegistry(cfg *config.Config, store ratelimit.Store) *ratelimit.Registry {
	p := cfg.RateLimit.Policies
	return ratelimit.NewRegistry(store, map[ratelimit.Purpose]ratelimit.Policy{
		ratelimit.PurposeFable:  policyFromConfig(p.Fable),
		ratelimit.PurposeSpeech: policyFromConfig(p.TTS),
	})
}

func policyFromConfig(pc config.PolicyConfig) ratelimit.Policy {
	return ratelimit.Policy{
		Limit:  pc.Tokens,
		Window: time.Duration(pc.WindowSeconds) * time.Second,
	}
}

// ProvideRedisHealthChecker 未配置共享存储时返回 nil 接口
func ProvideRedisHealthChecker(client *redis.Client) handler.HealthChecker {
	if client == nil {
		return nil
	}
	return client
}

// ProvideFableGenerator 提供寓言生成器，采样参数取默认 provider 的配置
func ProvideFableGenerator(cfg *config.Config, factory *llm.EinoFactory) *fable.Generator {
	provider := factory.DefaultProvider()
	pc := cfg.LLM.Providers[provider]
	return fable.NewGenerator(factory, fable.GeneratorConfig{
		Provider:    provider,
		Temperature: temperature(pc.Temperature),
		MaxTokens:   pc.MaxTokens,
	})
}

func temperature(t *float64) *float32 {
	if t == nil {
		return nil
	}
	v := float32(*t)
	return &v
}

// ProvideSpeechService 提供朗读服务
func ProvideSpeechService(cfg *config.Config, synth appspeech.Synthesizer) *appspeech.Service {
	return appspeech.NewService(synth, cfg.Speech.Voices)
}

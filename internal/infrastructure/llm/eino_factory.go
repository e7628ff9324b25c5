// Package llm 提供文本生成模型客户端
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"fable-ai-api/internal/config"
	apperrors "fable-ai-api/pkg/errors"
)

// EinoFactory 管理多个 Eino ChatModel 客户端实例
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// DefaultProvider 默认 provider 名
func (f *EinoFactory) DefaultProvider() string {
	return f.config.DefaultProvider
}

// Get 获取指定名称的 ChatModel，如果未指定则返回默认客户端
//
// provider 未配置 API Key 时返回 ErrMisconfigured，不缓存，配置补齐后重启即可生效。
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	// 惰性加载
	f.mu.Lock()
	defer f.mu.Unlock()

	// 再次检查防止竞态
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, apperrors.ErrMisconfigured.WithError(fmt.Errorf("provider %s not found in LLM config", name))
	}
	if strings.TrimSpace(providerCfg.APIKey) == "" {
		return nil, apperrors.ErrMisconfigured.WithError(fmt.Errorf("provider %s has no api key", name))
	}

	cfg := &openai.ChatModelConfig{
		APIKey:  providerCfg.APIKey,
		BaseURL: providerCfg.BaseURL,
		Model:   providerCfg.Model,
		Timeout: providerCfg.Timeout,
	}
	if providerCfg.MaxTokens > 0 {
		cfg.MaxTokens = ptrInt(providerCfg.MaxTokens)
	}
	if providerCfg.Temperature != nil {
		cfg.Temperature = ptrFloat32(float32(*providerCfg.Temperature))
	}

	// 使用 Eino 的 OpenAI 适配器
	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Default 返回默认 ChatModel
func (f *EinoFactory) Default(ctx context.Context) (model.BaseChatModel, error) {
	return f.Get(ctx, "")
}

func ptrFloat32(f float32) *float32 {
	return &f
}

func ptrInt(i int) *int {
	return &i
}

package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable-ai-api/internal/config"
	apperrors "fable-ai-api/pkg/errors"
)

func newFactory(providers map[string]config.ProviderConfig) *EinoFactory {
	return NewEinoFactory(&config.Config{LLM: config.LLMConfig{
		DefaultProvider: "openai",
		Providers:       providers,
	}})
}

func TestEinoFactory_MissingAPIKeyIsMisconfiguration(t *testing.T) {
	f := newFactory(map[string]config.ProviderConfig{
		"openai": {Model: "gpt-4o-mini"},
	})

	_, err := f.Default(context.Background())
	require.Error(t, err)

	require.True(t, apperrors.IsAppError(err))
	assert.Equal(t, apperrors.CodeMisconfigured, apperrors.AsAppError(err).Code)
}

func TestEinoFactory_UnknownProvider(t *testing.T) {
	f := newFactory(map[string]config.ProviderConfig{})

	_, err := f.Get(context.Background(), "anthropic")
	require.Error(t, err)
	assert.True(t, apperrors.IsAppError(err))
}

func TestEinoFactory_CachesModels(t *testing.T) {
	f := newFactory(map[string]config.ProviderConfig{
		"openai": {
			APIKey:      "sk-test",
			BaseURL:     "http://127.0.0.1:1/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   400,
			Temperature: ptrFloat64(0.8),
			Timeout:     time.Second,
		},
	})
	assert.Equal(t, "openai", f.DefaultProvider())

	first, err := f.Default(context.Background())
	require.NoError(t, err)
	second, err := f.Get(context.Background(), "openai")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func ptrFloat64(f float64) *float64 { return &f }

// Package speech 提供语音合成服务客户端
package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	appspeech "fable-ai-api/internal/application/speech"
	"fable-ai-api/internal/config"
	apperrors "fable-ai-api/pkg/errors"
)

// OpenAISynthesizer OpenAI 兼容的 /audio/speech 客户端
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	apiKey string
}

// NewOpenAISynthesizer 创建语音合成客户端，缺少 API Key 时在调用时返回 ErrMisconfigured
func NewOpenAISynthesizer(cfg *config.Config) *OpenAISynthesizer {
	clientConfig := openai.DefaultConfig(cfg.Speech.APIKey)
	if cfg.Speech.BaseURL != "" {
		clientConfig.BaseURL = cfg.Speech.BaseURL
	}
	if cfg.Speech.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Speech.Timeout}
	}

	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Speech.Model,
		apiKey: cfg.Speech.APIKey,
	}
}

// Synthesize 实现 appspeech.Synthesizer
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, in appspeech.SynthesisInput) (io.ReadCloser, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, apperrors.ErrMisconfigured.WithError(fmt.Errorf("speech api key is not configured"))
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          in.Text,
		Voice:          openai.SpeechVoice(in.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          in.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	return resp, nil
}

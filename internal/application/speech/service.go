// Package speech 寓言朗读：音色映射、格式约束与合成调用
package speech

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	apperrors "fable-ai-api/pkg/errors"
	"fable-ai-api/pkg/logger"
	"fable-ai-api/pkg/metrics"
)

// Voice 对外音色
type Voice string

const (
	VoiceKid   Voice = "kid-en"
	VoiceWomen Voice = "women"
)

// Format 音频格式
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatOpus Format = "opus"
)

// ContentTypeMP3 mp3 响应类型
const ContentTypeMP3 = "audio/mpeg"

// DefaultSpeed 未指定语速时的默认值
const DefaultSpeed = 0.98

// DefaultVoices 对外音色到服务端音色的默认映射
var DefaultVoices = map[Voice]string{
	VoiceKid:   "verse",
	VoiceWomen: "alloy",
}

// Request 朗读请求，字段已通过接口层校验
type Request struct {
	Text   string
	Voice  Voice
	Format Format
	Speed  float64
	// Pitch 接受但不参与合成
	Pitch float64
}

// SynthesisInput 传给语音服务的参数
type SynthesisInput struct {
	Text  string
	Voice string
	Speed float64
}

// Synthesizer 语音合成服务（port），返回的音频流由调用方关闭
type Synthesizer interface {
	Synthesize(ctx context.Context, in SynthesisInput) (io.ReadCloser, error)
}

// Audio 合成结果
type Audio struct {
	Body        io.ReadCloser
	ContentType string
}

// Service 朗读服务
type Service struct {
	synth  Synthesizer
	voices map[Voice]string
}

// NewService 创建朗读服务，voices 覆盖默认音色映射
func NewService(synth Synthesizer, voices map[string]string) *Service {
	merged := make(map[Voice]string, len(DefaultVoices))
	for k, v := range DefaultVoices {
		merged[k] = v
	}
	for k, v := range voices {
		if v != "" {
			merged[Voice(k)] = v
		}
	}
	return &Service{synth: synth, voices: merged}
}

// Synthesize 合成音频，目前只支持 mp3
func (s *Service) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	if req.Voice == "" {
		req.Voice = VoiceKid
	}
	if req.Format == "" {
		req.Format = FormatMP3
	}
	if req.Speed == 0 {
		req.Speed = DefaultSpeed
	}
	if req.Format != FormatMP3 {
		return nil, apperrors.ErrFormatUnsupported.WithDetail(fmt.Sprintf("format %s", req.Format))
	}

	providerVoice, ok := s.voices[req.Voice]
	if !ok {
		providerVoice = DefaultVoices[VoiceKid]
	}

	body, err := s.synth.Synthesize(ctx, SynthesisInput{
		Text:  req.Text,
		Voice: providerVoice,
		Speed: req.Speed,
	})
	if err != nil {
		metrics.SpeechTotal.WithLabelValues(string(req.Voice), "error").Inc()
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.ErrSpeechFailed.WithError(err)
	}

	metrics.SpeechTotal.WithLabelValues(string(req.Voice), "success").Inc()
	logger.Debug(ctx, "speech synthesis started",
		"voice", string(req.Voice),
		"provider_voice", providerVoice,
		"chars", len([]rune(req.Text)),
	)
	return &Audio{
		Body:        &countingBody{ReadCloser: body},
		ContentType: ContentTypeMP3,
	}, nil
}

// countingBody 统计实际下发的音频字节数
type countingBody struct {
	io.ReadCloser
	n      atomic.Int64
	closed atomic.Bool
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n.Add(int64(n))
	return n, err
}

func (b *countingBody) Close() error {
	if b.closed.CompareAndSwap(false, true) {
		metrics.SpeechBytes.Add(float64(b.n.Load()))
	}
	return b.ReadCloser.Close()
}

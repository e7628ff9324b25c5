package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fable-ai-api/internal/application/speech"
	"fable-ai-api/internal/interfaces/http/dto"
	"fable-ai-api/pkg/logger"
)

// SpeechSynthesizer 朗读服务
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error)
}

// SpeechHandler 朗读处理器
type SpeechHandler struct {
	synth SpeechSynthesizer
}

// NewSpeechHandler 创建朗读处理器
func NewSpeechHandler(synth SpeechSynthesizer) *SpeechHandler {
	return &SpeechHandler{synth: synth}
}

// Synthesize 朗读文本，以流的方式返回音频
// @Summary 朗读寓言
// @Tags Speech
// @Accept json
// @Produce audio/mpeg
// @Param body body dto.SpeechRequest true "朗读参数"
// @Success 200 {file} binary
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/tts [post]
func (h *SpeechHandler) Synthesize(c *gin.Context) {
	var req dto.SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	audio, err := h.synth.Synthesize(ctx, req.ToRequest())
	if err != nil {
		logger.Error(ctx, "speech synthesis failed", err)
		dto.AppError(c, err)
		return
	}
	defer audio.Body.Close()

	c.DataFromReader(http.StatusOK, -1, audio.ContentType, audio.Body, map[string]string{
		"Cache-Control": "no-store",
	})
}

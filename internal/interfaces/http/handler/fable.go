// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fable-ai-api/internal/application/fable"
	"fable-ai-api/internal/interfaces/http/dto"
	"fable-ai-api/pkg/logger"
)

// FableGenerator 寓言生成服务
type FableGenerator interface {
	Generate(ctx context.Context, req fable.Request) (fable.Result, error)
}

// FableHandler 寓言生成处理器
type FableHandler struct {
	generator FableGenerator
}

// NewFableHandler 创建寓言生成处理器
func NewFableHandler(generator FableGenerator) *FableHandler {
	return &FableHandler{generator: generator}
}

// Generate 生成寓言
// @Summary 生成寓言
// @Description 按角色、场景与主题生成一则带寓意的短篇诗体寓言
// @Tags Fable
// @Accept json
// @Produce json
// @Param body body dto.GenerateFableRequest true "生成参数"
// @Success 200 {object} fable.Result
// @Failure 400 {object} dto.ErrorResponse
// @Failure 429 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/fable [post]
func (h *FableHandler) Generate(c *gin.Context) {
	var req dto.GenerateFableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.generator.Generate(ctx, req.ToRequest())
	if err != nil {
		logger.Error(ctx, "fable generation failed", err)
		dto.AppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

package fable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	einoobs "fable-ai-api/internal/observability/eino"
	workflowprompt "fable-ai-api/internal/workflow/prompt"
	apperrors "fable-ai-api/pkg/errors"
	"fable-ai-api/pkg/logger"
	"fable-ai-api/pkg/metrics"
)

const workflowName = "fable_generate"

// GeneratorConfig 单次生成的模型参数，零值表示沿用 provider 配置
type GeneratorConfig struct {
	Provider string
	Model    string
	// Temperature 为 nil 时不覆盖，显式的 0 会下发
	Temperature *float32
	MaxTokens   int
}

// Generator 构建 prompt、调用模型并解析输出
type Generator struct {
	factory ChatModelFactory
	prompts *workflowprompt.Registry
	cfg     GeneratorConfig
}

// NewGenerator 创建寓言生成器
func NewGenerator(factory ChatModelFactory, cfg GeneratorConfig) *Generator {
	return &Generator{
		factory: factory,
		prompts: workflowprompt.NewRegistry(),
		cfg:     cfg,
	}
}

// Generate 生成一篇寓言
//
// 模型返回空文本时仍返回默认结果；模型调用失败返回 ErrLLMCallFailed，
// 配置缺失（如 API Key）原样返回 ErrMisconfigured。
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	if g == nil || g.factory == nil {
		return Result{}, apperrors.ErrMisconfigured.WithError(fmt.Errorf("llm factory not configured"))
	}

	req = req.WithDefaults().Sanitized()
	language := string(req.Language)
	start := time.Now()

	res, err := g.generate(ctx, req)
	metrics.GenerationDuration.WithLabelValues(language).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationTotal.WithLabelValues(language, "error").Inc()
		return Result{}, err
	}
	metrics.GenerationTotal.WithLabelValues(language, "success").Inc()
	return res, nil
}

func (g *Generator) generate(ctx context.Context, req Request) (Result, error) {
	provider := strings.TrimSpace(g.cfg.Provider)
	ctx = einoobs.WithWorkflowProvider(ctx, workflowName, provider)

	chatModel, err := g.factory.Get(ctx, provider)
	if err != nil {
		if apperrors.IsAppError(err) {
			return Result{}, err
		}
		return Result{}, apperrors.ErrLLMCallFailed.WithError(err)
	}

	msgs, err := g.formatMessages(ctx, req)
	if err != nil {
		return Result{}, apperrors.ErrGenerationFailed.WithError(err)
	}

	out, err := chatModel.Generate(ctx, msgs, g.modelOptions()...)
	if err != nil {
		return Result{}, apperrors.ErrLLMCallFailed.WithError(err)
	}

	content := ""
	if out != nil {
		content = out.Content
	}
	if strings.TrimSpace(content) == "" {
		logger.Warn(ctx, "llm returned empty fable content", "provider", provider)
	}

	res, report := Analyze(content)
	recordReport(res, report)
	if report.DroppedMorals > 0 || report.ClampedLines > 0 {
		logger.Debug(ctx, "fable output trimmed",
			"dropped_morals", report.DroppedMorals,
			"clamped_lines", report.ClampedLines,
		)
	}
	return res, nil
}

func (g *Generator) formatMessages(ctx context.Context, req Request) ([]*schema.Message, error) {
	tpl, err := g.prompts.ChatTemplate(workflowprompt.PromptFableV1)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, map[string]any{
		"characters": req.Characters,
		"setting":    req.Setting,
		"theme":      req.Theme,
		"style":      string(req.Style),
		"tone":       string(req.Tone),
		"language":   string(req.Language),
	})
}

func (g *Generator) modelOptions() []model.Option {
	opts := make([]model.Option, 0, 3)
	if g.cfg.Temperature != nil {
		opts = append(opts, model.WithTemperature(*g.cfg.Temperature))
	}
	if g.cfg.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(g.cfg.MaxTokens))
	}
	if m := strings.TrimSpace(g.cfg.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	return opts
}

func recordReport(res Result, report Report) {
	metrics.GenerationLines.Observe(float64(len(res.Lines)))
	if report.TitleDerived {
		metrics.InterpreterFallbacks.WithLabelValues("title_derived").Inc()
	}
	if report.TitleDefault {
		metrics.InterpreterFallbacks.WithLabelValues("title_default").Inc()
	}
	if report.MoralDefault {
		metrics.InterpreterFallbacks.WithLabelValues("moral_default").Inc()
	}
}

// Package fable 寓言生成：prompt 构建、模型调用与输出解析
package fable

// Style 写作风格
type Style string

const (
	StyleClassic Style = "Classic"
	StyleModern  Style = "Modern"
	StyleCrypto  Style = "Crypto"
)

// Tone 语气
type Tone string

const (
	ToneWhimsical   Tone = "Whimsical"
	ToneDarklyComic Tone = "Darkly comic"
	ToneUplifting   Tone = "Uplifting"
	ToneSatirical   Tone = "Satirical"
)

// Language 输出语言
type Language string

const (
	LanguageEnglish Language = "English"
	LanguageFrench  Language = "Français"
)

// Request 生成请求，字段已通过接口层校验
type Request struct {
	Characters string
	Setting    string
	Theme      string
	Style      Style
	Tone       Tone
	Language   Language
}

// WithDefaults 补齐枚举字段默认值
func (r Request) WithDefaults() Request {
	if r.Style == "" {
		r.Style = StyleClassic
	}
	if r.Tone == "" {
		r.Tone = ToneUplifting
	}
	if r.Language == "" {
		r.Language = LanguageEnglish
	}
	return r
}

// Sanitized 返回自由文本字段清理后的副本
func (r Request) Sanitized() Request {
	r.Characters = Sanitize(r.Characters)
	r.Setting = Sanitize(r.Setting)
	r.Theme = Sanitize(r.Theme)
	return r
}

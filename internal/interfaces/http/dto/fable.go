package dto

import "fable-ai-api/internal/application/fable"

// GenerateFableRequest 生成寓言请求
type GenerateFableRequest struct {
	Characters string `json:"characters" binding:"required,min=2,max=200"`
	Setting    string `json:"setting" binding:"max=200"`
	Theme      string `json:"theme" binding:"required,min=2,max=200"`
	Style      string `json:"style" binding:"omitempty,oneof=Classic Modern Crypto"`
	Tone       string `json:"tone" binding:"omitempty,oneof=Whimsical 'Darkly comic' Uplifting Satirical"`
	Language   string `json:"language" binding:"omitempty,oneof=English Français"`
}

// ToRequest 转换为应用层请求
func (r *GenerateFableRequest) ToRequest() fable.Request {
	return fable.Request{
		Characters: r.Characters,
		Setting:    r.Setting,
		Theme:      r.Theme,
		Style:      fable.Style(r.Style),
		Tone:       fable.Tone(r.Tone),
		Language:   fable.Language(r.Language),
	}
}

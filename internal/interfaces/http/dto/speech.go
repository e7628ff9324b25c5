package dto

import "fable-ai-api/internal/application/speech"

// SpeechRequest 朗读请求
type SpeechRequest struct {
	Text   string   `json:"text" binding:"required,min=4,max=5000"`
	Voice  string   `json:"voice" binding:"omitempty,oneof=kid-en women"`
	Format string   `json:"format" binding:"omitempty,oneof=mp3 opus"`
	Speed  *float64 `json:"speed" binding:"omitnil,gte=0.5,lte=1.25"`
	// Pitch 接受但暂不生效
	Pitch *float64 `json:"pitch" binding:"omitnil,gte=-6,lte=6"`
}

// ToRequest 转换为应用层请求
func (r *SpeechRequest) ToRequest() speech.Request {
	req := speech.Request{
		Text:   r.Text,
		Voice:  speech.Voice(r.Voice),
		Format: speech.Format(r.Format),
	}
	if r.Speed != nil {
		req.Speed = *r.Speed
	}
	if r.Pitch != nil {
		req.Pitch = *r.Pitch
	}
	return req
}

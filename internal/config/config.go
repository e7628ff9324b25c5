// Package config 提供配置加载和管理功能
package config

import (
	"strings"
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Speech        SpeechConfig        `yaml:"speech" mapstructure:"speech"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" mapstructure:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LLMConfig 文本生成服务配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature *float64      `yaml:"temperature" mapstructure:"temperature"` // 未设置时沿用模型默认值
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SpeechConfig 语音合成服务配置
type SpeechConfig struct {
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Voices 对外音色 -> 服务端音色
	Voices map[string]string `yaml:"voices" mapstructure:"voices"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Store RateLimitStoreConfig `yaml:"store" mapstructure:"store"`
	// OnStoreFailure 共享存储故障策略：deny（拒绝当前请求）或 local（进程内降级为本地存储）
	OnStoreFailure string `yaml:"on_store_failure" mapstructure:"on_store_failure"`
	// CleanupInterval 本地存储清理空窗口的周期，<=0 关闭
	CleanupInterval time.Duration  `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	KeyPrefix       string         `yaml:"key_prefix" mapstructure:"key_prefix"`
	Policies        PoliciesConfig `yaml:"policies" mapstructure:"policies"`
}

// RateLimitStoreConfig 共享限流存储（Redis）配置
type RateLimitStoreConfig struct {
	// Address host:port 或 redis(s):// URL
	Address      string        `yaml:"address" mapstructure:"address"`
	Token        string        `yaml:"token" mapstructure:"token"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// Configured 地址和凭据同时存在时才启用共享存储
func (c RateLimitStoreConfig) Configured() bool {
	return strings.TrimSpace(c.Address) != "" && strings.TrimSpace(c.Token) != ""
}

// Partial 只配置了地址或凭据之一
func (c RateLimitStoreConfig) Partial() bool {
	hasAddr := strings.TrimSpace(c.Address) != ""
	hasToken := strings.TrimSpace(c.Token) != ""
	return hasAddr != hasToken
}

// PoliciesConfig 各用途的限流额度
type PoliciesConfig struct {
	Fable PolicyConfig `yaml:"fable" mapstructure:"fable"`
	TTS   PolicyConfig `yaml:"tts" mapstructure:"tts"`
}

// PolicyConfig 滑动窗口额度
type PolicyConfig struct {
	Tokens        int `yaml:"tokens" mapstructure:"tokens"`
	WindowSeconds int `yaml:"window_seconds" mapstructure:"window_seconds"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	Output string `yaml:"output" mapstructure:"output"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Exporter   string  `yaml:"exporter" mapstructure:"exporter"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	CORS CORSConfig `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

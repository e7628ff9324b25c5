// Package config 提供配置加载功能
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// 匹配 ${VAR} 或 ${VAR:default}
// g1: 变量名, g2: 默认值部分（含冒号）, g3: 默认值内容
var envPlaceholder = regexp.MustCompile(`\${(\w+)(:([^}]*))?}`)

// Load 加载配置文件
// 按优先级加载：默认配置 -> 环境配置 -> 环境变量
func Load() (*Config, error) {
	return LoadFrom("configs")
}

// LoadFrom 从指定目录加载配置，目录下 config.yaml 可选
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 1. 加载默认配置
	if err := loadConfigFile(v, dir+"/config.yaml", true); err != nil {
		return nil, err
	}

	// 2. 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := loadConfigFile(v, fmt.Sprintf("%s/config.%s.yaml", dir, env), true); err != nil {
		return nil, err
	}

	// 3. 绑定环境变量 (直接覆盖)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindAliases(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadConfigFile 读取文件，执行环境变量替换，并加载到 viper
func loadConfigFile(v *viper.Viper, path string, optional bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	reader := strings.NewReader(expandEnv(string(content)))
	if v.ConfigFileUsed() == "" {
		if err := v.ReadConfig(reader); err != nil {
			return fmt.Errorf("failed to read processed config %s: %w", path, err)
		}
		// 手动标记已加载文件，后续文件走 MergeConfig
		v.SetConfigFile(path)
	} else {
		if err := v.MergeConfig(reader); err != nil {
			return fmt.Errorf("failed to merge processed config %s: %w", path, err)
		}
	}

	return nil
}

// expandEnv 替换字符串中的 ${VAR:default} 占位符
func expandEnv(s string) string {
	return envPlaceholder.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envPlaceholder.FindStringSubmatch(match)
		key := submatch[1]
		hasDefault := submatch[2] != ""
		defVal := submatch[3]

		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		if hasDefault {
			return defVal
		}
		// 保留原样以便识别未定义的变量
		return match
	})
}

// bindAliases 兼容部署平台常见的环境变量名
func bindAliases(v *viper.Viper) {
	_ = v.BindEnv("rate_limit.store.address", "RATE_LIMIT_STORE_ADDRESS", "RATE_LIMIT_REDIS_URL", "UPSTASH_REDIS_URL")
	_ = v.BindEnv("rate_limit.store.token", "RATE_LIMIT_STORE_TOKEN", "RATE_LIMIT_REDIS_TOKEN", "UPSTASH_REDIS_TOKEN")
	_ = v.BindEnv("llm.providers.openai.api_key", "LLM_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("speech.api_key", "SPEECH_API_KEY", "OPENAI_API_KEY")
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 校验配置中无法兜底的值
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.RateLimit.OnStoreFailure)) {
	case "", "deny", "local":
	default:
		return fmt.Errorf("rate_limit.on_store_failure must be deny or local, got %q", c.RateLimit.OnStoreFailure)
	}
	for name, p := range map[string]PolicyConfig{"fable": c.RateLimit.Policies.Fable, "tts": c.RateLimit.Policies.TTS} {
		if p.Tokens < 0 {
			return fmt.Errorf("rate_limit.policies.%s.tokens must not be negative", name)
		}
		if p.WindowSeconds <= 0 {
			return fmt.Errorf("rate_limit.policies.%s.window_seconds must be positive", name)
		}
	}
	return nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 应用默认值
	v.SetDefault("app.name", "fable-ai-api")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	// HTTP 服务器默认值
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "90s")
	v.SetDefault("server.http.idle_timeout", "120s")
	v.SetDefault("server.http.shutdown_timeout", "30s")

	// 文本生成默认值
	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("llm.providers.openai.api_key", "")
	v.SetDefault("llm.providers.openai.model", "gpt-4o-mini")
	v.SetDefault("llm.providers.openai.max_tokens", 400)
	v.SetDefault("llm.providers.openai.temperature", 0.8)
	v.SetDefault("llm.providers.openai.timeout", "60s")

	// 语音合成默认值
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.model", "gpt-4o-mini-tts")
	v.SetDefault("speech.timeout", "60s")
	v.SetDefault("speech.voices", map[string]string{
		"kid-en": "verse",
		"women":  "alloy",
	})

	// 限流默认值
	v.SetDefault("rate_limit.store.address", "")
	v.SetDefault("rate_limit.store.token", "")
	v.SetDefault("rate_limit.store.pool_size", 20)
	v.SetDefault("rate_limit.store.min_idle_conns", 2)
	v.SetDefault("rate_limit.store.dial_timeout", "5s")
	v.SetDefault("rate_limit.store.read_timeout", "2s")
	v.SetDefault("rate_limit.store.write_timeout", "2s")
	v.SetDefault("rate_limit.on_store_failure", "deny")
	v.SetDefault("rate_limit.cleanup_interval", "10m")
	v.SetDefault("rate_limit.key_prefix", "ratelimit")
	v.SetDefault("rate_limit.policies.fable.tokens", 10)
	v.SetDefault("rate_limit.policies.fable.window_seconds", 3600)
	v.SetDefault("rate_limit.policies.tts.tokens", 20)
	v.SetDefault("rate_limit.policies.tts.window_seconds", 3600)

	// 可观测性默认值
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.logging.output", "stdout")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.exporter", "otlp")
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// 安全默认值
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
}

// Package ratelimit 提供按请求方身份的滑动窗口限流
//
// 每次检查都会占用窗口内的一个位置（包括被拒绝的请求），窗口计数由 Store 维护：
// 进程内的 MemoryStore 或共享的 Redis 存储。两种存储只负责“记录并返回窗口快照”，
// 放行与重试时间统一由 Evaluate 计算，保证换存储不换语义。
package ratelimit

import (
	"context"
	"strings"
	"time"

	"fable-ai-api/pkg/logger"
	"fable-ai-api/pkg/metrics"
)

// Purpose 限流用途标签
type Purpose string

const (
	PurposeFable  Purpose = "fable"
	PurposeSpeech Purpose = "tts"
)

// AnonymousRequester 无法识别来源时使用的请求方标识
const AnonymousRequester = "anonymous"

// Identity 构建限流身份键：purpose:requester
func Identity(purpose Purpose, requester string) string {
	requester = strings.TrimSpace(requester)
	if requester == "" {
		requester = AnonymousRequester
	}
	return string(purpose) + ":" + requester
}

// Policy 滑动窗口额度：Window 内最多 Limit 次
type Policy struct {
	Limit  int
	Window time.Duration
}

// WindowSeconds 窗口秒数（向上取整）
func (p Policy) WindowSeconds() int {
	return int((p.Window + time.Second - 1) / time.Second)
}

// Window 记录本次尝试后的窗口快照
type Window struct {
	// Count 窗口内的尝试次数，含本次
	Count int64
	// OldestMs 窗口内最早一次尝试的毫秒时间戳，Count 为 0 时无意义
	OldestMs int64
}

// Store 滑动窗口计数存储
//
// Record 必须原子地完成：剔除 now-window 之前（含边界）的记录、记录 now、返回快照。
// 实现需要并发安全。
type Store interface {
	Record(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error)
	// Name 用于日志与指标的后端名
	Name() string
}

// Decision 限流决策
type Decision struct {
	Allowed bool `json:"allowed"`
	// RetryAfterSeconds 拒绝时需要等待的秒数，放行时为 0
	RetryAfterSeconds int `json:"retry_after_seconds"`
	Limit             int `json:"limit"`
	Remaining         int `json:"remaining"`
	// ResetSeconds 窗口内最早一次尝试滑出窗口的剩余秒数
	ResetSeconds int `json:"reset_seconds"`
}

// Evaluate 根据窗口快照计算决策
func Evaluate(p Policy, w Window, now time.Time) Decision {
	windowMs := p.Window.Milliseconds()
	windowSeconds := p.WindowSeconds()

	reset := windowSeconds
	if w.Count > 0 {
		reset = ceilDiv(windowMs-(now.UnixMilli()-w.OldestMs), 1000)
		if reset > windowSeconds {
			// 其他实例时钟超前时 OldestMs 可能晚于 now
			reset = windowSeconds
		}
		if reset < 0 {
			reset = 0
		}
	}

	d := Decision{
		Allowed:      w.Count <= int64(p.Limit),
		Limit:        p.Limit,
		Remaining:    p.Limit - int(w.Count),
		ResetSeconds: reset,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		d.RetryAfterSeconds = reset
	}
	return d
}

func ceilDiv(n, d int64) int {
	if n <= 0 {
		return int(n / d)
	}
	return int((n + d - 1) / d)
}

// Governor 单一用途的限流器
type Governor struct {
	purpose Purpose
	policy  Policy
	store   Store
	now     func() time.Time
}

// Option Governor 配置项
type Option func(*Governor)

// WithClock 替换时间源（测试用）
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGovernor 创建限流器
func NewGovernor(purpose Purpose, policy Policy, store Store, opts ...Option) *Governor {
	g := &Governor{
		purpose: purpose,
		policy:  policy,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Purpose 返回限流用途
func (g *Governor) Purpose() Purpose {
	return g.purpose
}

// Policy 返回限流额度
func (g *Governor) Policy() Policy {
	return g.policy
}

// Check 记录一次尝试并返回决策
//
// 存储故障时不放行：返回拒绝，RetryAfterSeconds 为整个窗口。
func (g *Governor) Check(ctx context.Context, identity string) Decision {
	now := g.now()
	backend := g.store.Name()

	start := time.Now()
	w, err := g.store.Record(ctx, identity, g.policy.Window, now)
	metrics.RateLimitStoreDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			logger.Debug(ctx, "rate limit check abandoned", "identity", identity, "error", err.Error())
		} else {
			metrics.RateLimitStoreErrors.WithLabelValues(string(g.purpose)).Inc()
			logger.Error(ctx, "rate limit store failed, denying request", err,
				"identity", identity,
				"backend", backend,
			)
		}
		metrics.RateLimitDecisions.WithLabelValues(string(g.purpose), backend, "error").Inc()
		return g.denyOnFailure()
	}

	d := Evaluate(g.policy, w, now)
	result := "allowed"
	if !d.Allowed {
		result = "denied"
	}
	metrics.RateLimitDecisions.WithLabelValues(string(g.purpose), backend, result).Inc()
	return d
}

func (g *Governor) denyOnFailure() Decision {
	ws := g.policy.WindowSeconds()
	return Decision{
		Allowed:           false,
		RetryAfterSeconds: ws,
		Limit:             g.policy.Limit,
		Remaining:         0,
		ResetSeconds:      ws,
	}
}

// Registry 按用途索引的限流器集合，共享同一个 Store
type Registry struct {
	store     Store
	governors map[Purpose]*Governor
}

// NewRegistry 为每个用途创建限流器
func NewRegistry(store Store, policies map[Purpose]Policy, opts ...Option) *Registry {
	r := &Registry{
		store:     store,
		governors: make(map[Purpose]*Governor, len(policies)),
	}
	for purpose, policy := range policies {
		r.governors[purpose] = NewGovernor(purpose, policy, store, opts...)
	}
	return r
}

// For 返回指定用途的限流器，未配置时返回 nil
func (r *Registry) For(purpose Purpose) *Governor {
	if r == nil {
		return nil
	}
	return r.governors[purpose]
}

// Backend 当前使用的存储后端名
func (r *Registry) Backend() string {
	if r == nil || r.store == nil {
		return ""
	}
	return r.store.Name()
}

// Degraded 共享存储是否已降级为本地存储，不支持降级的存储恒为 false
func (r *Registry) Degraded() bool {
	if r == nil {
		return false
	}
	d, ok := r.store.(interface{ Degraded() bool })
	return ok && d.Degraded()
}

// Failover 存储是否按 local 策略包装，故障时切换而非拒绝
func (r *Registry) Failover() bool {
	if r == nil {
		return false
	}
	_, ok := r.store.(*FailoverStore)
	return ok
}

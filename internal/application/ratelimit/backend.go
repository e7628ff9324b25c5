package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fable-ai-api/pkg/logger"
	"fable-ai-api/pkg/metrics"
)

// FailureMode 共享存储故障时的处理策略，进程内统一生效
type FailureMode string

const (
	// FailureDeny 拒绝受影响的请求，存储恢复后自动恢复
	FailureDeny FailureMode = "deny"
	// FailureLocal 第一次故障后整个进程切换到本地存储，不再切回
	FailureLocal FailureMode = "local"
)

// ParseFailureMode 解析配置值，空值为 deny
func ParseFailureMode(s string) (FailureMode, error) {
	switch FailureMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailureDeny:
		return FailureDeny, nil
	case FailureLocal:
		return FailureLocal, nil
	default:
		return "", fmt.Errorf("unknown rate limit failure mode %q", s)
	}
}

// FailoverStore 共享存储第一次故障后永久切换到本地存储
type FailoverStore struct {
	primary  Store
	local    Store
	degraded atomic.Bool
	once     sync.Once
}

// NewFailoverStore 创建降级存储
func NewFailoverStore(primary, local Store) *FailoverStore {
	return &FailoverStore{primary: primary, local: local}
}

// Name 实现 Store
func (f *FailoverStore) Name() string {
	if f.degraded.Load() {
		return f.local.Name()
	}
	return f.primary.Name()
}

// Degraded 是否已切换到本地存储
func (f *FailoverStore) Degraded() bool {
	return f.degraded.Load()
}

// Record 实现 Store
//
// 调用方取消导致的失败不触发降级，直接返回错误。
func (f *FailoverStore) Record(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error) {
	if f.degraded.Load() {
		return f.local.Record(ctx, key, window, now)
	}

	w, err := f.primary.Record(ctx, key, window, now)
	if err == nil {
		return w, nil
	}
	if ctx.Err() != nil {
		return Window{}, err
	}

	f.once.Do(func() {
		logger.Error(ctx, "shared rate limit store failed, switching to in-memory limiter for the rest of the process lifetime", err,
			"backend", f.primary.Name(),
		)
		metrics.RateLimitDegraded.Set(1)
		f.degraded.Store(true)
	})
	return f.local.Record(ctx, key, window, now)
}

// Selection 启动时选择存储所需的输入
type Selection struct {
	// Address / Token 共享存储地址与凭据，二者齐全才使用共享存储
	Address     string
	Token       string
	FailureMode FailureMode
	Local       Store
	// OpenShared 创建共享存储；返回错误视为配置错误，退回本地存储
	OpenShared func(ctx context.Context) (Store, error)
	// Ping 可选的启动连通性检查，失败只记录日志，运行期按 FailureMode 处理
	Ping func(ctx context.Context) error
}

// SelectStore 按配置选择存储，配置不完整时记录日志并使用本地存储
func SelectStore(ctx context.Context, sel Selection) Store {
	hasAddr := strings.TrimSpace(sel.Address) != ""
	hasToken := strings.TrimSpace(sel.Token) != ""

	switch {
	case hasAddr && hasToken:
	case hasAddr || hasToken:
		logger.Warn(ctx, "incomplete rate limit store config, provide both address and token; falling back to in-memory limiter (non-persistent)",
			"has_address", hasAddr,
			"has_token", hasToken,
		)
		return sel.Local
	default:
		logger.Warn(ctx, "no rate limit store configured, falling back to in-memory limiter (non-persistent)")
		return sel.Local
	}

	if sel.OpenShared == nil {
		logger.Warn(ctx, "shared rate limit store unavailable in this build, using in-memory limiter")
		return sel.Local
	}
	shared, err := sel.OpenShared(ctx)
	if err != nil {
		logger.Error(ctx, "failed to init shared rate limit store, falling back to in-memory limiter", err)
		return sel.Local
	}

	if sel.Ping != nil {
		if err := sel.Ping(ctx); err != nil {
			logger.Warn(ctx, "shared rate limit store not reachable at startup",
				"error", err.Error(),
				"on_store_failure", string(sel.FailureMode),
			)
		}
	}

	logger.Info(ctx, "using shared rate limit store",
		"backend", shared.Name(),
		"on_store_failure", string(sel.FailureMode),
	)
	if sel.FailureMode == FailureLocal {
		return NewFailoverStore(shared, sel.Local)
	}
	return shared
}

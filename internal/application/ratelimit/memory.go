package ratelimit

import (
	"context"
	"sync"
	"time"

	"fable-ai-api/pkg/metrics"
)

// memoryWindow 单个身份的时间戳列表（毫秒，按记录顺序）
type memoryWindow struct {
	mu       sync.Mutex
	hits     []int64
	windowMs int64
	evicted  bool
}

// MemoryStore 进程内滑动窗口存储
//
// 不跨进程共享，进程重启后清零。同一身份的记录互斥，不同身份之间只在查表时短暂竞争。
// cleanupInterval > 0 时后台协程定期移除已经全部过期的身份，对检查结果无影响。
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryWindow

	now             func() time.Time
	cleanupInterval time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// MemoryOption MemoryStore 配置项
type MemoryOption func(*MemoryStore)

// WithCleanupInterval 设置清理周期，<=0 不启动清理协程
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *MemoryStore) {
		m.cleanupInterval = d
	}
}

// WithMemoryClock 替换清理协程使用的时间源
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryStore 创建进程内存储
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]*memoryWindow),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cleanupInterval > 0 {
		go m.cleanup()
	}
	return m
}

// Name 实现 Store
func (m *MemoryStore) Name() string {
	return "local"
}

// Record 实现 Store
func (m *MemoryStore) Record(_ context.Context, key string, window time.Duration, now time.Time) (Window, error) {
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()

	for {
		e := m.entry(key)

		e.mu.Lock()
		if e.evicted {
			// 清理协程在查表和加锁之间移除了该条目，重新取
			e.mu.Unlock()
			continue
		}

		recent := e.hits[:0]
		for _, ts := range e.hits {
			if nowMs-ts < windowMs {
				recent = append(recent, ts)
			}
		}
		recent = append(recent, nowMs)
		e.hits = recent
		e.windowMs = windowMs

		oldest := recent[0]
		for _, ts := range recent[1:] {
			if ts < oldest {
				oldest = ts
			}
		}
		w := Window{Count: int64(len(recent)), OldestMs: oldest}
		e.mu.Unlock()

		return w, nil
	}
}

func (m *MemoryStore) entry(key string) *memoryWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &memoryWindow{}
		m.entries[key] = e
	}
	return e
}

// Sweep 移除窗口内已无记录的身份，返回移除数量
func (m *MemoryStore) Sweep(now time.Time) int {
	nowMs := now.UnixMilli()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		e.mu.Lock()
		expired := true
		for _, ts := range e.hits {
			if nowMs-ts < e.windowMs {
				expired = false
				break
			}
		}
		if expired {
			e.evicted = true
			delete(m.entries, key)
			removed++
		}
		e.mu.Unlock()
	}
	metrics.RateLimitLocalIdentities.Set(float64(len(m.entries)))
	return removed
}

// Close 停止清理协程，可重复调用
func (m *MemoryStore) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

func (m *MemoryStore) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// Package ratelimittest 提供 ratelimit.Store 实现共用的行为测试
package ratelimittest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable-ai-api/internal/application/ratelimit"
)

// Clock 可手动推进的时钟
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock 创建固定起点的时钟
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now 返回当前时间
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 推进时钟
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Start 测试使用的固定起点
var Start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// StoreFactory 每个子测试创建一个全新的存储
type StoreFactory func(t *testing.T) ratelimit.Store

// RunStoreContract 对 Store 实现执行统一的行为测试
func RunStoreContract(t *testing.T, newStore StoreFactory) {
	t.Run("admits up to limit then denies", func(t *testing.T) {
		clock := NewClock(Start)
		g := ratelimit.NewGovernor(ratelimit.PurposeFable, ratelimit.Policy{Limit: 10, Window: time.Hour}, newStore(t), ratelimit.WithClock(clock.Now))
		ctx := context.Background()
		id := ratelimit.Identity(ratelimit.PurposeFable, "203.0.113.7")

		for i := 0; i < 10; i++ {
			d := g.Check(ctx, id)
			require.True(t, d.Allowed, "attempt %d should be allowed", i+1)
			assert.Equal(t, 0, d.RetryAfterSeconds)
			assert.Equal(t, 10-(i+1), d.Remaining)
			clock.Advance(time.Millisecond)
		}

		d := g.Check(ctx, id)
		assert.False(t, d.Allowed)
		assert.Equal(t, 3600, d.RetryAfterSeconds)
		assert.Equal(t, 0, d.Remaining)
		assert.Equal(t, 10, d.Limit)
	})

	t.Run("retry after rounds up to whole seconds", func(t *testing.T) {
		clock := NewClock(Start)
		g := ratelimit.NewGovernor(ratelimit.PurposeSpeech, ratelimit.Policy{Limit: 1, Window: 10 * time.Second}, newStore(t), ratelimit.WithClock(clock.Now))
		ctx := context.Background()

		require.True(t, g.Check(ctx, "tts:a").Allowed)
		clock.Advance(1500 * time.Millisecond)

		d := g.Check(ctx, "tts:a")
		assert.False(t, d.Allowed)
		assert.Equal(t, 9, d.RetryAfterSeconds)
	})

	t.Run("denied attempts occupy window slots", func(t *testing.T) {
		clock := NewClock(Start)
		g := ratelimit.NewGovernor(ratelimit.PurposeFable, ratelimit.Policy{Limit: 2, Window: 10 * time.Second}, newStore(t), ratelimit.WithClock(clock.Now))
		ctx := context.Background()

		require.True(t, g.Check(ctx, "fable:a").Allowed)
		require.True(t, g.Check(ctx, "fable:a").Allowed)

		clock.Advance(time.Second)
		require.False(t, g.Check(ctx, "fable:a").Allowed)

		// 前两次滑出窗口，被拒绝的那次仍然占位
		clock.Advance(9 * time.Second)
		assert.True(t, g.Check(ctx, "fable:a").Allowed)

		d := g.Check(ctx, "fable:a")
		assert.False(t, d.Allowed)
		assert.Equal(t, 1, d.RetryAfterSeconds)
	})

	t.Run("identities are isolated", func(t *testing.T) {
		clock := NewClock(Start)
		g := ratelimit.NewGovernor(ratelimit.PurposeFable, ratelimit.Policy{Limit: 3, Window: time.Minute}, newStore(t), ratelimit.WithClock(clock.Now))
		ctx := context.Background()
		a := ratelimit.Identity(ratelimit.PurposeFable, "10.0.0.1")
		b := ratelimit.Identity(ratelimit.PurposeFable, "10.0.0.2")

		for i := 0; i < 3; i++ {
			require.True(t, g.Check(ctx, a).Allowed)
			require.True(t, g.Check(ctx, b).Allowed)
		}
		assert.False(t, g.Check(ctx, a).Allowed)
		assert.False(t, g.Check(ctx, a).Allowed)

		c := ratelimit.Identity(ratelimit.PurposeFable, "10.0.0.3")
		d := g.Check(ctx, c)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, d.Remaining)
	})

	t.Run("purposes are isolated for the same requester", func(t *testing.T) {
		clock := NewClock(Start)
		store := newStore(t)
		fable := ratelimit.NewGovernor(ratelimit.PurposeFable, ratelimit.Policy{Limit: 1, Window: time.Minute}, store, ratelimit.WithClock(clock.Now))
		speech := ratelimit.NewGovernor(ratelimit.PurposeSpeech, ratelimit.Policy{Limit: 1, Window: time.Minute}, store, ratelimit.WithClock(clock.Now))
		ctx := context.Background()

		require.True(t, fable.Check(ctx, ratelimit.Identity(ratelimit.PurposeFable, "198.51.100.1")).Allowed)
		assert.True(t, speech.Check(ctx, ratelimit.Identity(ratelimit.PurposeSpeech, "198.51.100.1")).Allowed)
		assert.False(t, fable.Check(ctx, ratelimit.Identity(ratelimit.PurposeFable, "198.51.100.1")).Allowed)
	})

	t.Run("expired slots free exactly that many admissions", func(t *testing.T) {
		clock := NewClock(Start)
		g := ratelimit.NewGovernor(ratelimit.PurposeFable, ratelimit.Policy{Limit: 3, Window: time.Minute}, newStore(t), ratelimit.WithClock(clock.Now))
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			require.True(t, g.Check(ctx, "fable:x").Allowed)
			clock.Advance(10 * time.Second)
		}
		// 现在是 Start+30s，记录在 0s/10s/20s
		clock.Advance(35 * time.Second)
		// Start+65s：只有 0s 那次滑出
		assert.True(t, g.Check(ctx, "fable:x").Allowed)

		d := g.Check(ctx, "fable:x")
		assert.False(t, d.Allowed)
		assert.Equal(t, 5, d.RetryAfterSeconds)
	})

	t.Run("window boundary is exclusive", func(t *testing.T) {
		clock := NewClock(Start)
		g := ratelimit.NewGovernor(ratelimit.PurposeFable, ratelimit.Policy{Limit: 1, Window: time.Minute}, newStore(t), ratelimit.WithClock(clock.Now))
		ctx := context.Background()

		require.True(t, g.Check(ctx, "fable:edge").Allowed)
		clock.Advance(time.Minute - time.Millisecond)
		require.False(t, g.Check(ctx, "fable:edge").Allowed)

		// 第一条恰好满一个窗口被剔除，第二条（被拒绝的）仍在
		clock.Advance(time.Millisecond)
		d := g.Check(ctx, "fable:edge")
		assert.False(t, d.Allowed)
		assert.Equal(t, 60, d.RetryAfterSeconds)
	})

	t.Run("zero limit always denies", func(t *testing.T) {
		clock := NewClock(Start)
		g := ratelimit.NewGovernor(ratelimit.PurposeSpeech, ratelimit.Policy{Limit: 0, Window: 30 * time.Second}, newStore(t), ratelimit.WithClock(clock.Now))

		d := g.Check(context.Background(), "tts:z")
		assert.False(t, d.Allowed)
		assert.Equal(t, 30, d.RetryAfterSeconds)
	})

	t.Run("concurrent checks on one identity never over-admit", func(t *testing.T) {
		clock := NewClock(Start)
		g := ratelimit.NewGovernor(ratelimit.PurposeFable, ratelimit.Policy{Limit: 20, Window: time.Hour}, newStore(t), ratelimit.WithClock(clock.Now))
		ctx := context.Background()

		var allowed atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if g.Check(ctx, "fable:burst").Allowed {
					allowed.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(20), allowed.Load())
	})

	t.Run("concurrent checks on distinct identities", func(t *testing.T) {
		clock := NewClock(Start)
		g := ratelimit.NewGovernor(ratelimit.PurposeFable, ratelimit.Policy{Limit: 5, Window: time.Hour}, newStore(t), ratelimit.WithClock(clock.Now))
		ctx := context.Background()

		var denied atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				key := ratelimit.Identity(ratelimit.PurposeFable, fmt.Sprintf("10.1.0.%d", id))
				for j := 0; j < 5; j++ {
					if !g.Check(ctx, key).Allowed {
						denied.Add(1)
					}
				}
			}(i)
		}
		wg.Wait()

		assert.Zero(t, denied.Load())
	})
}

// Step 场景中的一步：推进时钟后对 Identity 检查一次
type Step struct {
	Advance  time.Duration
	Identity string
}

// Scenario 混合多个身份、拒绝与过期的调用序列
func Scenario() (ratelimit.Policy, []Step) {
	policy := ratelimit.Policy{Limit: 3, Window: 20 * time.Second}
	steps := []Step{
		{0, "fable:a"},
		{250 * time.Millisecond, "fable:a"},
		{0, "fable:b"},
		{1 * time.Second, "fable:a"},
		{700 * time.Millisecond, "fable:a"},
		{0, "fable:a"},
		{3 * time.Second, "fable:b"},
		{10 * time.Second, "fable:a"},
		{5*time.Second + 100*time.Millisecond, "fable:a"},
		{1 * time.Second, "fable:a"},
		{0, "fable:b"},
		{19 * time.Second, "fable:a"},
		{time.Millisecond, "fable:a"},
		{40 * time.Second, "fable:a"},
		{0, "fable:b"},
	}
	return policy, steps
}

// Replay 在给定存储上回放场景，返回每一步的决策
func Replay(t *testing.T, store ratelimit.Store) []ratelimit.Decision {
	t.Helper()
	policy, steps := Scenario()
	clock := NewClock(Start)
	g := ratelimit.NewGovernor(ratelimit.PurposeFable, policy, store, ratelimit.WithClock(clock.Now))

	out := make([]ratelimit.Decision, 0, len(steps))
	for _, s := range steps {
		clock.Advance(s.Advance)
		out = append(out, g.Check(context.Background(), s.Identity))
	}
	return out
}

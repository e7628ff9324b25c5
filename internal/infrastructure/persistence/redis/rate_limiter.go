package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"fable-ai-api/internal/application/ratelimit"
)

// slidingWindowScript 在一次往返内完成剔除、记录、计数
//
// KEYS[1] 窗口键；ARGV[1] 当前毫秒；ARGV[2] 窗口毫秒；ARGV[3] 本次成员
// 返回 {窗口内记录数, 最早记录的毫秒时间戳}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
redis.call('ZADD', key, now, ARGV[3])
local count = redis.call('ZCARD', key)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
redis.call('PEXPIRE', key, window)

return {count, tonumber(oldest[2])}
`)

// SlidingWindowStore Redis 有序集合实现的滑动窗口存储，多实例共享计数
type SlidingWindowStore struct {
	client *Client
	prefix string
}

// NewSlidingWindowStore 创建共享限流存储，prefix 为空时不加前缀
func NewSlidingWindowStore(client *Client, prefix string) *SlidingWindowStore {
	return &SlidingWindowStore{
		client: client,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

// Name 实现 ratelimit.Store
func (s *SlidingWindowStore) Name() string {
	return "redis"
}

// Record 实现 ratelimit.Store
func (s *SlidingWindowStore) Record(ctx context.Context, key string, window time.Duration, now time.Time) (ratelimit.Window, error) {
	fullKey := s.buildKey(key)
	nowMs := now.UnixMilli()

	ctx, span := tracer.Start(ctx, "ratelimit.Record")
	span.SetAttributes(
		attribute.String("ratelimit.key", fullKey),
		attribute.Int64("ratelimit.window_ms", window.Milliseconds()),
	)
	defer span.End()

	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())
	raw, err := slidingWindowScript.Run(ctx, s.client.rdb, []string{fullKey}, nowMs, window.Milliseconds(), member).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ratelimit.Window{}, fmt.Errorf("sliding window script: %w", err)
	}

	w, err := parseWindow(raw)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ratelimit.Window{}, err
	}

	span.SetAttributes(
		attribute.Int64("ratelimit.current_count", w.Count),
		attribute.Int64("ratelimit.oldest_ms", w.OldestMs),
	)
	return w, nil
}

func (s *SlidingWindowStore) buildKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func parseWindow(raw interface{}) (ratelimit.Window, error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return ratelimit.Window{}, fmt.Errorf("unexpected sliding window reply: %v", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return ratelimit.Window{}, fmt.Errorf("unexpected sliding window count: %v", values[0])
	}
	oldest, ok := values[1].(int64)
	if !ok {
		return ratelimit.Window{}, fmt.Errorf("unexpected sliding window oldest: %v", values[1])
	}
	return ratelimit.Window{Count: count, OldestMs: oldest}, nil
}

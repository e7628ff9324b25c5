// Package redis 提供基于 Redis 的共享限流存储
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"fable-ai-api/internal/config"
)

var tracer = otel.Tracer("redis")

// Client Redis 客户端
type Client struct {
	rdb    *redis.Client
	config *config.RateLimitStoreConfig
}

// NewClient 创建 Redis 客户端，不做连通性检查
//
// Address 支持 host:port、redis:// / rediss:// URL，以及托管服务提供的 https:// 地址
// （按 TLS 连接到同一主机的 6379 端口）。Token 作为 AUTH 密码。
func NewClient(cfg *config.RateLimitStoreConfig) (*Client, error) {
	opts, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		rdb:    redis.NewClient(opts),
		config: cfg,
	}, nil
}

func buildOptions(cfg *config.RateLimitStoreConfig) (*redis.Options, error) {
	addr := strings.TrimSpace(cfg.Address)
	if addr == "" {
		return nil, fmt.Errorf("rate limit store address is empty")
	}

	var opts *redis.Options
	switch {
	case strings.HasPrefix(addr, "redis://"), strings.HasPrefix(addr, "rediss://"):
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit store url: %w", err)
		}
		opts = parsed
	case strings.HasPrefix(addr, "https://"):
		u, err := url.Parse(addr)
		if err != nil || u.Hostname() == "" {
			return nil, fmt.Errorf("invalid rate limit store url %q", addr)
		}
		opts = &redis.Options{
			Addr:      net.JoinHostPort(u.Hostname(), "6379"),
			Username:  "default",
			TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: u.Hostname()},
		}
	default:
		opts = &redis.Options{Addr: addr}
	}

	if token := strings.TrimSpace(cfg.Token); token != "" {
		opts.Password = token
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// Redis 获取底层 Redis 客户端
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping 检查 Redis 连接
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.Ping")
	defer span.End()

	return c.rdb.Ping(ctx).Err()
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	result, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	if result != "PONG" {
		return fmt.Errorf("unexpected ping response: %s", result)
	}
	return nil
}

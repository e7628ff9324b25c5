package wire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable-ai-api/internal/application/ratelimit"
	"fable-ai-api/internal/config"
	"fable-ai-api/internal/infrastructure/persistence/redis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	temp := 0.8
	return &config.Config{
		LLM: config.LLMConfig{
			DefaultProvider: "openai",
			Providers: map[string]config.ProviderConfig{
				"openai": {Model: "gpt-4o-mini", MaxTokens: 400, Temperature: &temp},
			},
		},
		RateLimit: config.RateLimitConfig{
			OnStoreFailure: "deny",
			KeyPrefix:      "ratelimit",
			Policies: config.PoliciesConfig{
				Fable: config.PolicyConfig{Tokens: 10, WindowSeconds: 3600},
				TTS:   config.PolicyConfig{Tokens: 20, WindowSeconds: 3600},
			},
		},
	}
}

func TestProvideRateLimitStore(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	tests := []struct {
		name    string
		address string
		token   string
		mode    string
		backend string
		wrapped bool
	}{
		{name: "nothing configured", backend: "local"},
		{name: "address only", address: mr.Addr(), backend: "local"},
		{name: "token only", token: "s3cret", backend: "local"},
		{name: "shared deny", address: mr.Addr(), token: "s3cret", backend: "redis"},
		{name: "shared with local failover", address: mr.Addr(), token: "s3cret", mode: "local", backend: "redis", wrapped: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig()
			cfg.RateLimit.Store.Address = tt.address
			cfg.RateLimit.Store.Token = tt.token
			cfg.RateLimit.OnStoreFailure = tt.mode

			local, cleanupLocal := ProvideMemoryStore(cfg)
			defer cleanupLocal()
			client, cleanupClient := ProvideRedisClient(ctx, cfg)
			defer cleanupClient()

			store, err := ProvideRateLimitStore(ctx, cfg, local, client)
			require.NoError(t, err)
			assert.Equal(t, tt.backend, store.Name())

			_, isFailover := store.(*ratelimit.FailoverStore)
			assert.Equal(t, tt.wrapped, isFailover)
		})
	}
}

func TestProvideRateLimitStore_BadFailureMode(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.OnStoreFailure = "allow"

	local, cleanup := ProvideMemoryStore(cfg)
	defer cleanup()

	_, err := ProvideRateLimitStore(context.Background(), cfg, local, nil)
	assert.Error(t, err)
}

func TestProvideRateLimitRegistry(t *testing.T) {
	cfg := testConfig()
	local, cleanup := ProvideMemoryStore(cfg)
	defer cleanup()

	reg := ProvideRateLimitRegistry(cfg, local)

	assert.Equal(t, ratelimit.Policy{Limit: 10, Window: time.Hour}, reg.For(ratelimit.PurposeFable).Policy())
	assert.Equal(t, ratelimit.Policy{Limit: 20, Window: time.Hour}, reg.For(ratelimit.PurposeSpeech).Policy())
}

func TestProvideRedisHealthChecker(t *testing.T) {
	assert.Nil(t, ProvideRedisHealthChecker(nil))

	client, err := redis.NewClient(&config.RateLimitStoreConfig{Address: "127.0.0.1:6379", Token: "x"})
	require.NoError(t, err)
	defer client.Close()
	assert.NotNil(t, ProvideRedisHealthChecker(client))
}

func TestInitializeApp(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("s3cret")

	cfg := testConfig()
	cfg.RateLimit.Store.Address = mr.Addr()
	cfg.RateLimit.Store.Token = "s3cret"

	app, cleanup, err := InitializeApp(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	w := httptest.NewRecorder()
	app.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"backend":"redis"`)

	// 未配置 API Key：先计入限流，再返回 500
	req := httptest.NewRequest(http.MethodPost, "/api/fable", strings.NewReader(`{"characters":"an ox","theme":"patience"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	app.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "server misconfiguration")
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.True(t, mr.Exists("ratelimit:fable:203.0.113.7"))
}

func TestTemperature(t *testing.T) {
	assert.Nil(t, temperature(nil))

	zero := 0.0
	got := temperature(&zero)
	require.NotNil(t, got)
	assert.Zero(t, *got)

	warm := 0.8
	assert.InDelta(t, 0.8, *temperature(&warm), 1e-6)
}

package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fable-ai-api/internal/application/ratelimit"
	"fable-ai-api/internal/application/ratelimit/ratelimittest"
)

// flakyStore 前 healthy 次成功，之后持续失败
type flakyStore struct {
	healthy int
	calls   int
	inner   *ratelimit.MemoryStore
}

func (f *flakyStore) Record(ctx context.Context, key string, window time.Duration, now time.Time) (ratelimit.Window, error) {
	f.calls++
	if f.calls > f.healthy {
		return ratelimit.Window{}, errors.New("dial tcp: i/o timeout")
	}
	return f.inner.Record(ctx, key, window, now)
}

func (f *flakyStore) Name() string { return "redis" }

func TestParseFailureMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ratelimit.FailureMode
		wantErr bool
	}{
		{in: "", want: ratelimit.FailureDeny},
		{in: "deny", want: ratelimit.FailureDeny},
		{in: " LOCAL ", want: ratelimit.FailureLocal},
		{in: "allow", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ratelimit.ParseFailureMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFailoverStore_SwitchesOnceAndStays(t *testing.T) {
	primary := &flakyStore{healthy: 2, inner: ratelimit.NewMemoryStore()}
	local := ratelimit.NewMemoryStore()
	f := ratelimit.NewFailoverStore(primary, local)
	clock := ratelimittest.NewClock(ratelimittest.Start)
	g := ratelimit.NewGovernor(ratelimit.PurposeFable, ratelimit.Policy{Limit: 3, Window: time.Hour}, f, ratelimit.WithClock(clock.Now))
	ctx := context.Background()

	assert.Equal(t, "redis", f.Name())
	assert.True(t, g.Check(ctx, "fable:a").Allowed)
	assert.True(t, g.Check(ctx, "fable:a").Allowed)
	assert.False(t, f.Degraded())

	// 第三次共享存储失败，改由本地存储记账，从零开始
	d := g.Check(ctx, "fable:a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.True(t, f.Degraded())
	assert.Equal(t, "local", f.Name())

	callsAtSwitch := primary.calls
	for i := 0; i < 3; i++ {
		g.Check(ctx, "fable:a")
	}
	assert.Equal(t, callsAtSwitch, primary.calls, "primary must not be consulted after switching")
	assert.Equal(t, 1, local.Len())
}

func TestFailoverStore_CancelledContextDoesNotSwitch(t *testing.T) {
	primary := &failingStore{err: context.Canceled}
	f := ratelimit.NewFailoverStore(primary, ratelimit.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Record(ctx, "tts:a", time.Minute, ratelimittest.Start)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, f.Degraded())
}

func TestSelectStore(t *testing.T) {
	local := ratelimit.NewMemoryStore()
	shared := &failingStore{}
	openShared := func(context.Context) (ratelimit.Store, error) { return shared, nil }

	tests := []struct {
		name string
		sel  ratelimit.Selection
		want string
	}{
		{
			name: "nothing configured",
			sel:  ratelimit.Selection{Local: local, OpenShared: openShared},
			want: "local",
		},
		{
			name: "address without token",
			sel:  ratelimit.Selection{Address: "redis://cache:6379", Local: local, OpenShared: openShared},
			want: "local",
		},
		{
			name: "token without address",
			sel:  ratelimit.Selection{Token: "secret", Local: local, OpenShared: openShared},
			want: "local",
		},
		{
			name: "both configured",
			sel:  ratelimit.Selection{Address: "cache:6379", Token: "secret", Local: local, OpenShared: openShared},
			want: "broken",
		},
		{
			name: "open error falls back",
			sel: ratelimit.Selection{
				Address: "cache:6379", Token: "secret", Local: local,
				OpenShared: func(context.Context) (ratelimit.Store, error) { return nil, errors.New("bad url") },
			},
			want: "local",
		},
		{
			name: "startup ping failure keeps shared store",
			sel: ratelimit.Selection{
				Address: "cache:6379", Token: "secret", Local: local, OpenShared: openShared,
				Ping: func(context.Context) error { return errors.New("connection refused") },
			},
			want: "broken",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ratelimit.SelectStore(context.Background(), tt.sel)
			assert.Equal(t, tt.want, got.Name())
		})
	}
}

func TestSelectStore_LocalFailureModeWrapsShared(t *testing.T) {
	local := ratelimit.NewMemoryStore()
	shared := &failingStore{err: errors.New("boom")}

	got := ratelimit.SelectStore(context.Background(), ratelimit.Selection{
		Address:     "cache:6379",
		Token:       "secret",
		FailureMode: ratelimit.FailureLocal,
		Local:       local,
		OpenShared:  func(context.Context) (ratelimit.Store, error) { return shared, nil },
	})

	f, ok := got.(*ratelimit.FailoverStore)
	require.True(t, ok)

	g := ratelimit.NewGovernor(ratelimit.PurposeSpeech, ratelimit.Policy{Limit: 1, Window: time.Minute}, f)
	assert.True(t, g.Check(context.Background(), "tts:a").Allowed)
	assert.True(t, f.Degraded())
}

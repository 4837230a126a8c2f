package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachable(t *testing.T) *RedisDeduper {
	t.Helper()

	d := NewWithClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	}), "gateway_webhook", time.Minute)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestKey(t *testing.T) {
	d := unreachable(t)

	assert.Equal(t, "dedup:gateway_webhook:evt_1", d.Key("evt_1"))
}

func TestNew_DefaultTTL(t *testing.T) {
	d := New("127.0.0.1:1", "scope", 0)
	t.Cleanup(func() { _ = d.Close() })

	assert.Equal(t, DefaultTTL, d.ttl)
}

func TestClaim_UnreachableRedis(t *testing.T) {
	d := unreachable(t)
	ctx := context.Background()

	ok, err := d.Claim(ctx, "evt_1")
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "claim delivery evt_1")

	err = d.Release(ctx, "evt_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release delivery evt_1")

	assert.Error(t, d.Ping(ctx))
}

package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuard(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	ok, err := g.Acquire(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = g.Acquire(ctx, "tok")
	assert.False(t, ok)
	ok, _ = g.Acquire(ctx, "other")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = g.Acquire(ctx, "tok")
	assert.True(t, ok, "claims expire with the ttl")
}

func TestRedisGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	g := NewRedisGuard(client, "portal:recovery:", time.Hour)
	ok, err := g.Acquire(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	other := NewRedisGuard(client, "portal:recovery:", time.Hour)
	ok, err = other.Acquire(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, ok, "a second instance sees the claim")

	key := "portal:recovery:" + digest("tok")
	require.True(t, mr.Exists(key))
	assert.False(t, mr.Exists("portal:recovery:tok"), "raw tokens are never stored")
	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(2 * time.Hour)
	ok, err = g.Acquire(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisGuardUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisGuard(client, "p:", 0).Acquire(context.Background(), "tok")
	assert.ErrorContains(t, err, "recovery guard")
}

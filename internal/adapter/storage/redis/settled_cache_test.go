package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettledCache_MarkAndCheck(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewSettledCache(client)
	ctx := context.Background()

	ref := "ref_1756600000000_a1b2c3d4"

	// Unknown reference => not settled
	settled, err := cache.IsSettled(ctx, ref)
	assert.NoError(t, err)
	assert.False(t, settled)

	err = cache.MarkSettled(ctx, ref, 24*time.Hour)
	require.NoError(t, err)

	settled, err = cache.IsSettled(ctx, ref)
	require.NoError(t, err)
	assert.True(t, settled)
}

func TestSettledCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewSettledCache(client)
	ctx := context.Background()

	ref := "ref_1756600000001_deadbeef"

	err := cache.MarkSettled(ctx, ref, 1*time.Second)
	require.NoError(t, err)

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Second)

	settled, err := cache.IsSettled(ctx, ref)
	assert.NoError(t, err)
	assert.False(t, settled, "expired entry should read as not settled")
}

func TestSettledCache_ReferencesAreIndependent(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewSettledCache(client)
	ctx := context.Background()

	require.NoError(t, cache.MarkSettled(ctx, "ref_one", time.Hour))

	settled, err := cache.IsSettled(ctx, "ref_two")
	require.NoError(t, err)
	assert.False(t, settled)
}

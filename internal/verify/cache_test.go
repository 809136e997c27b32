package verify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := MXRecord{Hosts: []string{"mx1.example.com", "mx2.example.com"}, HasMX: true, CachedAt: time.Now().UTC()}
	require.NoError(t, c.Set(ctx, "example.com", rec, time.Hour))

	got, ok, err := c.Get(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Hosts, got.Hosts)
	assert.True(t, got.HasMX)
}

func TestRedisCacheTTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(mr.Addr())
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	rec := MXRecord{HasMX: false, CachedAt: time.Now().UTC()}
	require.NoError(t, c.Set(ctx, "dead.example", rec, time.Minute))

	_, ok, err := c.Get(ctx, "dead.example")
	require.NoError(t, err)
	assert.True(t, ok, "no-mx negatives are cached too")

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "dead.example")
	require.NoError(t, err)
	assert.False(t, ok)
}

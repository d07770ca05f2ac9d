package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRevocationStore(t *testing.T) (*RedisRevocationStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisRevocationStore(context.Background(), RedisRevocationConfig{
		Addr:      mr.Addr(),
		KeyPrefix: "gw:revoked:",
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedisRevocationStore_RevokeAndCheck(t *testing.T) {
	t.Parallel()

	store, mr := newTestRevocationStore(t)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "abc", time.Minute))

	revoked, err = store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, time.Minute, mr.TTL("gw:revoked:abc"))
}

func TestRedisRevocationStore_Expires(t *testing.T) {
	t.Parallel()

	store, mr := newTestRevocationStore(t)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "short", 10*time.Second))
	mr.FastForward(11 * time.Second)

	revoked, err := store.IsRevoked(ctx, "short")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationStore_NoTTL(t *testing.T) {
	t.Parallel()

	store, mr := newTestRevocationStore(t)

	require.NoError(t, store.Revoke(context.Background(), "forever", -time.Second))
	assert.True(t, mr.Exists("gw:revoked:forever"))
	assert.Zero(t, mr.TTL("gw:revoked:forever"))
}

func TestRedisRevocationStore_Unavailable(t *testing.T) {
	t.Parallel()

	store, mr := newTestRevocationStore(t)
	mr.Close()

	_, err := store.IsRevoked(context.Background(), "abc")
	require.ErrorIs(t, err, ErrRevocationCheck)
}

func TestRedisRevocationStore_Ping(t *testing.T) {
	t.Parallel()

	store, mr := newTestRevocationStore(t)
	require.NoError(t, store.Ping(context.Background()))

	v := newHMACValidator(t, defaultJWTConfig(), WithRevocationStore(store))
	require.NoError(t, v.Ping(context.Background()))

	mr.Close()
	require.Error(t, store.Ping(context.Background()))
	require.Error(t, v.Ping(context.Background()))
}

func TestNewRedisRevocationStore_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewRedisRevocationStore(context.Background(), RedisRevocationConfig{})
	require.Error(t, err)

	_, err = NewRedisRevocationStore(context.Background(), RedisRevocationConfig{
		Addr:    "127.0.0.1:1",
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
}

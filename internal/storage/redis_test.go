package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/tourshop/internal/storage"
)

func newTestRedisKV(t *testing.T) (*storage.RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return storage.NewRedisKV(client), mr
}

func TestRedisKV_SetAndGet(t *testing.T) {
	kv, mr := newTestRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "basket", `[{"id":"1"}]`))

	got, ok, err := kv.Get(ctx, "basket")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, got)

	raw, err := mr.Get("storefront:basket")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"1"}]`, raw)
}

func TestRedisKV_Get_Miss(t *testing.T) {
	kv, _ := newTestRedisKV(t)

	got, ok, err := kv.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok, "a miss is not an error")
	assert.Empty(t, got)
}

func TestRedisKV_Delete(t *testing.T) {
	kv, _ := newTestRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "basket", "[]"))
	require.NoError(t, kv.Delete(ctx, "basket"))

	_, ok, err := kv.Get(ctx, "basket")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisKV_Delete_NonExistent(t *testing.T) {
	kv, _ := newTestRedisKV(t)
	require.NoError(t, kv.Delete(context.Background(), "ghost"))
}

func TestRedisKV_NoExpiry(t *testing.T) {
	kv, mr := newTestRedisKV(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "basket", "[]"))
	mr.FastForward(30 * 24 * time.Hour)

	_, ok, err := kv.Get(ctx, "basket")
	require.NoError(t, err)
	assert.True(t, ok, "basket must survive indefinitely")
}

func TestRedisKV_ServerDown(t *testing.T) {
	kv, mr := newTestRedisKV(t)
	mr.Close()

	_, _, err := kv.Get(context.Background(), "basket")
	require.Error(t, err)
	assert.Error(t, kv.Ping(context.Background()))
}

func TestConnectRedis_InvalidURL(t *testing.T) {
	_, err := storage.ConnectRedis(context.Background(), "not-a-url")
	require.Error(t, err)
}

func TestConnectRedis_UnreachableServer(t *testing.T) {
	_, err := storage.ConnectRedis(context.Background(), "redis://localhost:19999")
	require.Error(t, err)
}

func TestConnectRedis_Success(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := storage.ConnectRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	_ = client.Close()
}

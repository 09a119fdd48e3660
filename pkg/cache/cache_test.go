package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string   `json:"name"`
	Slugs []string `json:"slugs"`
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, "test", time.Minute), mr
}

// 两种实现的公共行为
func storeContract(t *testing.T, store Store) {
	ctx := context.Background()

	var got payload
	found, err := store.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := payload{Name: "owner", Slugs: []string{"users.view", "users.create"}}
	require.NoError(t, store.Set(ctx, "k1", want, 0))

	found, err = store.Get(ctx, "k1", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	exists, err := store.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Set(ctx, "k2", "x", time.Hour))
	require.NoError(t, store.Delete(ctx, "k1", "k2", "never-set"))

	exists, err = store.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = store.Exists(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(100, time.Minute, time.Hour))
}

func TestRedisStore(t *testing.T) {
	store, _ := newTestRedisStore(t)
	storeContract(t, store)
}

func TestMemoryStore_EntryExpiry(t *testing.T) {
	store := NewMemoryStore(100, time.Minute, 48*time.Hour)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "short", 1, 30*time.Second))
	require.NoError(t, store.Set(ctx, "long", 2, 25*time.Hour))

	now = now.Add(31 * time.Second)
	exists, _ := store.Exists(ctx, "short")
	assert.False(t, exists, "过期条目不应再返回")

	var v int
	found, err := store.Get(ctx, "long", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, v)
}

func TestRedisStore_TTLAndPrefix(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "perm:user:1", []string{"a"}, 5*time.Second))
	assert.True(t, mr.Exists("test:cache:perm:user:1"))
	assert.Equal(t, 5*time.Second, mr.TTL("test:cache:perm:user:1"))

	// 未指定ttl时使用默认值
	require.NoError(t, store.Set(ctx, "other", 1, 0))
	assert.Equal(t, time.Minute, mr.TTL("test:cache:other"))

	mr.FastForward(6 * time.Second)
	exists, err := store.Exists(ctx, "perm:user:1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	var v int
	_, err := store.Get(context.Background(), "k", &v)
	assert.Error(t, err)
}

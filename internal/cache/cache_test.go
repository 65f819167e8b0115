package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(16, time.Hour)
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	payload := []byte(`{"totalMatched":1}`)
	require.NoError(t, c.Set(ctx, "k", payload, 5*time.Second))
	payload[0] = 'x'

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"totalMatched":1}`, string(got))

	now = now.Add(5 * time.Second)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "expired key is dropped on read")
}

func TestMemory_BoundedSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2, time.Hour)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, []byte(k), time.Minute))
	}
	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok, "least recently used key is evicted")
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemory_SweepsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(100, 50*time.Millisecond)

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("search:%d", i), []byte("x"), time.Minute))
	}
	require.Equal(t, 10, c.Len())
	// nothing reads the keys again; the background sweep must still drop them
	assert.Eventually(t, func() bool { return c.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestMemory_Counter(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(1, time.Hour)

	n, err := c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// filling the LRU must not evict counters
	require.NoError(t, c.Set(ctx, "a", []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("b"), time.Minute))
	n, err = c.Counter(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("PHARMAMAP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PHARMAMAP_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	c := NewRedis(client, "pharmamap-test:")
	if err := c.Ping(ctx); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	key := "search:" + time.Now().Format(time.RFC3339Nano)
	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("payload"), time.Minute))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))

	genKey := key + ":gen"
	n, err := c.Counter(ctx, genKey)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = c.Incr(ctx, genKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Counter(ctx, genKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	client.Del(ctx, "pharmamap-test:"+genKey)
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	return mr
}

func TestInitInvalidURL(t *testing.T) {
	err := Init("://invalid-url", "")
	assert.Error(t, err)
}

func TestSetGetDel(t *testing.T) {
	useMiniredis(t)
	ctx := context.Background()

	assert.NoError(t, Set(ctx, "k", "v", time.Minute))
	v, err := Get(ctx, "k")
	assert.NoError(t, err)
	assert.Equal(t, "v", v)

	assert.NoError(t, Del(ctx, "k"))
	_, err = Get(ctx, "k")
	assert.True(t, IsNil(err))
}

func TestSetNX(t *testing.T) {
	useMiniredis(t)
	ctx := context.Background()

	ok, err := SetNX(ctx, "lock", "1", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = SetNX(ctx, "lock", "1", time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestIncrWithExpiry(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()

	n, err := IncrWithExpiry(ctx, "counter", time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = IncrWithExpiry(ctx, "counter", time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Expiry is attached on the first increment only; the window does not
	// slide on later hits.
	ttl := mr.TTL("counter")
	assert.Greater(t, ttl, time.Duration(0))

	mr.FastForward(2 * time.Hour)
	n, err = IncrWithExpiry(ctx, "counter", time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestGetInt(t *testing.T) {
	useMiniredis(t)
	ctx := context.Background()

	n, err := GetInt(ctx, "missing")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)

	assert.NoError(t, Set(ctx, "n", 7, time.Minute))
	n, err = GetInt(ctx, "n")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestBasicOpsWithUnreachableRedis(t *testing.T) {
	cli := goredis.NewClient(&goredis.Options{
		Addr:         "127.0.0.1:0", // invalid/unreachable
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
	})
	SetClient(cli)
	assert.NotNil(t, GetClient())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Error(t, Set(ctx, "k", "v", time.Second))
	_, err := Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, Del(ctx, "k"))
	_, err = SetNX(ctx, "k", "v", time.Second)
	assert.Error(t, err)
	_, err = IncrWithExpiry(ctx, "k", time.Second)
	assert.Error(t, err)
}

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func integrationCache(t *testing.T) *RedisCache {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping Redis integration test. Set RUN_INTEGRATION_TESTS=true to run.")
	}
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewRedisCache(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTryLockIsExclusive(t *testing.T) {
	c := integrationCache(t)
	ctx := context.Background()
	key := "test:lock:" + t.Name()

	release, err := c.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = c.TryLock(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	release()
	release2, err := c.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	release2()
}

func TestLockWaitsForRelease(t *testing.T) {
	c := integrationCache(t)
	ctx := context.Background()
	key := "test:lock:" + t.Name()

	release, err := c.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	go func() {
		time.Sleep(100 * time.Millisecond)
		release()
	}()

	release2, err := c.Lock(ctx, key, 5*time.Second, 2*time.Second)
	require.NoError(t, err)
	release2()
}

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("lock is held by another worker")

// releaseScript deletes the key only when it still holds our token,
// so an expired lock taken over by someone else is never released by us
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock sets key with a random token if absent. It returns a release func
// that is safe to call once the work is done.
func (r *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}, nil
}

// Lock retries TryLock until it succeeds, ctx is done or wait elapses
func (r *RedisCache) Lock(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	deadline := time.Now().Add(wait)
	backoff := 25 * time.Millisecond
	for {
		release, err := r.TryLock(ctx, key, ttl)
		if err == nil {
			return release, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sahilchouksey/course-commerce-api/utils/cache"
)

// Locker serialises work on one key. Reconciliation locks per order code.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker for single-instance deployments and tests
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(key, e, true) })
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyedEntry, held bool) {
	if held {
		<-e.ch
	}
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// RedisLocker is a Locker shared by every API instance
type RedisLocker struct {
	cache *cache.RedisCache
	ttl   time.Duration
	wait  time.Duration
}

func NewRedisLocker(c *cache.RedisCache, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{cache: c, ttl: ttl, wait: wait}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := r.cache.Lock(ctx, key, r.ttl, r.wait)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return unlock, nil
}

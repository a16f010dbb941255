package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"helios-ledger/interfaces"

	"github.com/redis/go-redis/v9"
)

// RebuildLocker serializes snapshot rebuilds of the same source.
// The returned release func must be called exactly once.
type RebuildLocker interface {
	Lock(ctx context.Context, source interfaces.Source) (release func(), err error)
}

// LocalRebuildLocker serializes rebuilds inside one process
type LocalRebuildLocker struct {
	mu    sync.Mutex
	slots map[interfaces.Source]chan struct{}
}

// NewLocalRebuildLocker creates an in-process per-source locker
func NewLocalRebuildLocker() *LocalRebuildLocker {
	return &LocalRebuildLocker{
		slots: make(map[interfaces.Source]chan struct{}),
	}
}

func (l *LocalRebuildLocker) slot(source interfaces.Source) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[source]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[source] = ch
	}
	return ch
}

// Lock blocks until the source is free or ctx is done
func (l *LocalRebuildLocker) Lock(ctx context.Context, source interfaces.Source) (func(), error) {
	ch := l.slot(source)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to acquire rebuild lock for %s: %w", source, ctx.Err())
	}
}

// releaseScript deletes the lock key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRebuildLocker serializes rebuilds across replicas sharing one Redis
type RedisRebuildLocker struct {
	rdb        *redis.Client
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
}

// NewRedisRebuildLocker creates a locker storing keys under prefix.
// ttl bounds how long a crashed holder can block others.
func NewRedisRebuildLocker(rdb *redis.Client, prefix string, ttl time.Duration) *RedisRebuildLocker {
	if prefix == "" {
		prefix = "helios:rebuild"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisRebuildLocker{
		rdb:        rdb,
		prefix:     prefix,
		ttl:        ttl,
		retryDelay: 50 * time.Millisecond,
	}
}

func (l *RedisRebuildLocker) key(source interfaces.Source) string {
	return l.prefix + ":" + string(source)
}

// Lock polls SET NX until it wins the key or ctx is done
func (l *RedisRebuildLocker) Lock(ctx context.Context, source interfaces.Source) (func(), error) {
	token, err := newLockToken()
	if err != nil {
		return nil, err
	}
	key := l.key(source)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire rebuild lock for %s: %w", source, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire rebuild lock for %s: %w", source, ctx.Err())
		case <-time.After(l.retryDelay):
		}
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled; release on a fresh one.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			releaseScript.Run(releaseCtx, l.rdb, []string{key}, token)
		})
	}
	return release, nil
}

func newLockToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

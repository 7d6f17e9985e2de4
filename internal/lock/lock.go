// Package lock coalesces overlapping flush triggers, inside one process or
// across agents sharing a Redis-backed queue.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/crewsync/pkg/instance"
)

// DefaultTTL bounds how long a crashed holder can block other agents.
const DefaultTTL = 5 * time.Minute

// Lock is a non-blocking exclusive lock.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Do runs fn when the lock is free. It reports false without calling fn when
// another holder has it.
func Do(ctx context.Context, l Lock, fn func(ctx context.Context) error) (bool, error) {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	if !ok {
		return false, nil
	}
	runErr := fn(ctx)
	if relErr := l.Release(context.WithoutCancel(ctx)); relErr != nil {
		return true, multierr.Append(runErr, fmt.Errorf("lock release: %w", relErr))
	}
	return true, runErr
}

// LocalLock is an in-process try-lock.
type LocalLock struct {
	mu   sync.Mutex
	held bool
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLock implements Lock using Redis SETNX + TTL. A local try-lock sits in
// front so goroutines of the same agent never race on the owner token.
type RedisLock struct {
	client redisStore
	key    string
	ttl    time.Duration
	local  LocalLock

	mu    sync.Mutex
	owner string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	if ok, _ := l.local.Acquire(ctx); !ok {
		return false, nil
	}
	owner := instance.GetID() + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil || !ok {
		_ = l.local.Release(ctx)
		if err != nil {
			return false, fmt.Errorf("setnx: %w", err)
		}
		return false, nil
	}
	l.mu.Lock()
	l.owner = owner
	l.mu.Unlock()
	return true, nil
}

// Release frees the lock only if the owner value still matches.
func (l *RedisLock) Release(ctx context.Context) error {
	l.mu.Lock()
	owner := l.owner
	l.owner = ""
	l.mu.Unlock()
	if owner == "" {
		return nil
	}
	defer func() { _ = l.local.Release(ctx) }()

	if _, err := l.client.DelIfValue(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

var (
	_ Lock = (*LocalLock)(nil)
	_ Lock = (*RedisLock)(nil)
)

package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	delErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeRedis) DelIfValue(_ context.Context, key, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return false, f.delErr
	}
	if f.values[key] != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func (f *fakeRedis) expire(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
}

func TestLocalLockIsExclusive(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if ok, _ := l.Acquire(ctx); ok {
		t.Fatalf("second acquire should fail while held")
	}
	_ = l.Release(ctx)
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatalf("acquire after release should succeed")
	}
}

func TestRedisLockOwnership(t *testing.T) {
	store := newFakeRedis()
	first, err := NewRedisLock(store, "crewsync:lock:flush", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "crewsync:lock:flush", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx); !ok || err != nil {
		t.Fatalf("first acquire: %v %v", ok, err)
	}
	if store.ttls["crewsync:lock:flush"] != DefaultTTL {
		t.Fatalf("expected default ttl, got %s", store.ttls["crewsync:lock:flush"])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("second agent should not acquire a held lock")
	}
	if ok, _ := first.Acquire(ctx); ok {
		t.Fatalf("re-entrant acquire should fail")
	}

	// A release by a non-owner must not drop the key.
	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, ok := store.values["crewsync:lock:flush"]; !ok {
		t.Fatalf("non-owner release removed the lock")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("lock should be free after owner release")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := newFakeRedis()
	l, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatalf("acquire failed")
	}
	store.expire("k")
	if err := l.Release(ctx); err != nil {
		t.Fatalf("release of expired lock should be a no-op, got %v", err)
	}
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatalf("local guard should be released too")
	}
}

func TestRedisLockReleaseErrorFreesLocalGuard(t *testing.T) {
	store := newFakeRedis()
	l, _ := NewRedisLock(store, "k", time.Minute)
	ctx := context.Background()
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatalf("acquire failed")
	}
	store.delErr = errors.New("connection reset")
	if err := l.Release(ctx); err == nil {
		t.Fatalf("expected release error")
	}
	store.delErr = nil
	store.expire("k")
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatalf("local guard must not stay held after a failed release")
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", 0); err == nil {
		t.Fatalf("expected nil client error")
	}
	if _, err := NewRedisLock(newFakeRedis(), "", 0); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestDoSkipsWhenHeld(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()
	_, _ = l.Acquire(ctx)

	ran, err := Do(ctx, l, func(context.Context) error {
		t.Fatalf("fn must not run while held")
		return nil
	})
	if ran || err != nil {
		t.Fatalf("expected skip, got %v %v", ran, err)
	}
}

func TestDoReleasesAfterError(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()
	boom := errors.New("boom")

	ran, err := Do(ctx, l, func(context.Context) error { return boom })
	if !ran || !errors.Is(err, boom) {
		t.Fatalf("expected run with boom, got %v %v", ran, err)
	}
	if ok, _ := l.Acquire(ctx); !ok {
		t.Fatalf("lock should be released after fn error")
	}
}

// Package storage persists whole JSON documents (the outbox queue and the
// per-employee notification snapshots) behind one small interface.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when nothing was stored under a key yet.
var ErrNotFound = errors.New("document not found")

// DocumentStore is the persistence boundary: read or replace a whole document.
type DocumentStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, body []byte) error
}

// Store is a DocumentStore that can also report health and release resources.
type Store interface {
	DocumentStore
	Ping(ctx context.Context) error
	Close() error
}

// LoadJSON decodes the document at key into dst. It reports false when the
// key has never been written.
func LoadJSON(ctx context.Context, store DocumentStore, key string, dst any) (bool, error) {
	body, err := store.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if len(body) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes src and replaces the document at key.
func SaveJSON(ctx context.Context, store DocumentStore, key string, src any) error {
	body, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := store.Set(ctx, key, body); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// Package kv is the storage port behind the map service handlers.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// Entry is one stored value. Version is assigned by the store: it starts at
// 1 on the first put of a key and increases on every overwrite, so callers
// can tell a fresh write from a replay.
type Entry struct {
	Data    []byte
	Version int64
	Meta    map[string]any
}

type PutOptions struct {
	// TTL expires the entry after the given duration. Zero means no expiry.
	TTL time.Duration
}

type Store interface {
	// Put stores entry under key and returns the version it was assigned.
	Put(ctx context.Context, key string, entry Entry, opts PutOptions) (version int64, err error)
	Get(ctx context.Context, key string) (entry Entry, err error)
	Delete(ctx context.Context, key string) error
}

func Put[T any](ctx context.Context, store Store, key string, v T, opts PutOptions) (int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return store.Put(ctx, key, Entry{Data: data}, opts)
}

func Get[T any](ctx context.Context, store Store, key string) (out T, err error) {
	entry, err := store.Get(ctx, key)
	if err != nil {
		return
	}
	err = json.Unmarshal(entry.Data, &out)
	if err != nil {
		return
	}
	return
}

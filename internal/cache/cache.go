// Package cache implements the events convention's discovery cache
// (spec.md §4.13, §5): an immutable, TTL-evicted key-value store shared by
// concurrent requests. Concurrent writers for the same key may race; one
// wins, which is acceptable because values are idempotent snapshots.
package cache

import (
	"context"
	"time"
)

// Cache is the minimal handle the gateway needs: get, set-with-ttl. An
// in-process sharded LRU is the default (no external dependency); a
// Redis-backed implementation is wired when configured.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Package cache provides byte caches for backend responses, portraits,
// layout snapshots and rendered artifacts.
//
// Three backends share the [Cache] interface: [FileCache] for the CLI,
// [RedisCache] for the server and [NullCache] when caching is disabled.
// Keys are built by a [Keyer] so every consumer agrees on the namespace.
package cache

import (
	"context"
	"time"
)

// Default lifetimes of cached entries.
const (
	// TTLHTTP bounds backend responses; the lineage changes rarely.
	TTLHTTP = 6 * time.Hour

	// TTLImage bounds downloaded portraits.
	TTLImage = 7 * 24 * time.Hour

	// TTLSnapshot bounds settled layout positions.
	TTLSnapshot = 30 * 24 * time.Hour

	// TTLArtifact bounds rendered frames.
	TTLArtifact = 24 * time.Hour
)

// Cache stores opaque byte values under string keys.
//
// Get reports a miss with ok == false and a nil error. A zero ttl stores
// the value without expiry.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Package store defines the shared key-value store contract the scheduling
// core is built on. Each primitive is a single atomic operation against one
// key; nothing in the core assumes multi-key transactions. Backends: Redis
// and Memory.
//
// Connectivity failures are returned wrapped in nuts.ErrStoreUnavailable and
// are transient by contract. A missing key or member is never an error; it
// is reported through a boolean result.
package store

import (
	"context"
	"time"
)

// Member is one entry of a sorted set.
type Member struct {
	Value string
	Score float64
}

// KV covers plain string keys with optional expiry.
type KV interface {
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetNX sets key to value with the given expiry only if key is absent.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// SetEX unconditionally sets key to value with the given expiry.
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error

	// ExtendIfEqual resets the expiry of key to ttl only if it currently
	// holds value. It reports whether the key was extended.
	ExtendIfEqual(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// DeleteIfEqual deletes key only if it currently holds value.
	DeleteIfEqual(ctx context.Context, key, value string) (bool, error)

	// Delete removes key.
	Delete(ctx context.Context, key string) error
}

// Sets covers unordered sets of strings.
type Sets interface {
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)

	// SPop removes and returns one arbitrary member. Two concurrent callers
	// never receive the same member.
	SPop(ctx context.Context, key string) (string, bool, error)

	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)
}

// SortedSets covers score-ordered sets.
type SortedSets interface {
	// ZAdd inserts member or overwrites its score.
	ZAdd(ctx context.Context, key, member string, score float64) error

	// ZAddNX inserts member only if it is absent.
	ZAddNX(ctx context.Context, key, member string, score float64) (bool, error)

	ZRem(ctx context.Context, key string, members ...string) (int64, error)
	ZScore(ctx context.Context, key, member string) (float64, bool, error)

	// ZRangeByScore returns members with min <= score <= max, ascending.
	ZRangeByScore(ctx context.Context, key string, minScore, maxScore float64) ([]Member, error)

	// ZRange returns every member, ascending by score.
	ZRange(ctx context.Context, key string) ([]Member, error)
}

// Hashes covers string-to-string maps stored under one key.
type Hashes interface {
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Store is the aggregate adapter interface. A single backend implements
// every primitive group.
type Store interface {
	KV
	Sets
	SortedSets
	Hashes

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}

// Package redis implements store.Store on Redis through go-redis. Every
// primitive maps onto one Redis command; the compare-and-expire and
// compare-and-delete primitives run as single-key Lua scripts so they stay
// atomic without MULTI.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/store"
)

var _ store.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements store.Store backed by Redis.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// New creates a Redis-backed store. The caller owns the client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// unavailable wraps a client error so callers can match it with
// nuts.ErrStoreUnavailable. Every non-Nil reply error from go-redis is a
// transport or server condition the core treats as transient.
func unavailable(op string, err error) error {
	return fmt.Errorf("nuts/redis: %s: %w: %w", op, nuts.ErrStoreUnavailable, err)
}

// isNil reports whether err is the go-redis "key does not exist" reply.
func isNil(err error) bool { return errors.Is(err, goredis.Nil) }

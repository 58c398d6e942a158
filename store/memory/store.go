// Package memory implements store.Store entirely in memory. It is safe for
// concurrent access and intended for unit testing and development; every
// process using it sees its own private keyspace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/huffmsa/nuts"
	"github.com/huffmsa/nuts/store"
)

var _ store.Store = (*Store)(nil)

type stringEntry struct {
	value   string
	expires time.Time // zero means no expiry
}

// Option configures the Store.
type Option func(*Store)

// WithClock sets the time source used for key expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	strings map[string]stringEntry
	sets    map[string]map[string]struct{}
	zsets   map[string]map[string]float64
	hashes  map[string]map[string]string

	now     func() time.Time
	failure error
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		strings: make(map[string]stringEntry),
		sets:    make(map[string]map[string]struct{}),
		zsets:   make(map[string]map[string]float64),
		hashes:  make(map[string]map[string]string),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetFailure makes every subsequent operation fail with err wrapped in
// nuts.ErrStoreUnavailable. Pass nil to restore normal operation.
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

// check must be called with s.mu held.
func (s *Store) check(op string) error {
	if s.failure != nil {
		return fmt.Errorf("nuts/memory: %s: %w: %w", op, nuts.ErrStoreUnavailable, s.failure)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Ping succeeds unless a failure has been injected.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check("ping")
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// KV
// ──────────────────────────────────────────────────

// live returns the entry for key if it exists and has not expired.
// Must be called with s.mu held.
func (s *Store) live(key string) (stringEntry, bool) {
	e, ok := s.strings[key]
	if !ok {
		return stringEntry{}, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.strings, key)
		return stringEntry{}, false
	}
	return e, true
}

func (s *Store) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

// Get returns the value of key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get"); err != nil {
		return "", false, err
	}
	e, ok := s.live(key)
	return e.value, ok, nil
}

// SetNX sets key only if it is absent.
func (s *Store) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("setnx"); err != nil {
		return false, err
	}
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.strings[key] = stringEntry{value: value, expires: s.expiry(ttl)}
	return true, nil
}

// SetEX sets key with an expiry.
func (s *Store) SetEX(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("setex"); err != nil {
		return err
	}
	s.strings[key] = stringEntry{value: value, expires: s.expiry(ttl)}
	return nil
}

// ExtendIfEqual resets the expiry of key if it holds value.
func (s *Store) ExtendIfEqual(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("extend"); err != nil {
		return false, err
	}
	e, ok := s.live(key)
	if !ok || e.value != value {
		return false, nil
	}
	e.expires = s.expiry(ttl)
	s.strings[key] = e
	return true, nil
}

// DeleteIfEqual deletes key if it holds value.
func (s *Store) DeleteIfEqual(_ context.Context, key, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete if equal"); err != nil {
		return false, err
	}
	e, ok := s.live(key)
	if !ok || e.value != value {
		return false, nil
	}
	delete(s.strings, key)
	return true, nil
}

// Delete removes key from every keyspace.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete"); err != nil {
		return err
	}
	delete(s.strings, key)
	delete(s.sets, key)
	delete(s.zsets, key)
	delete(s.hashes, key)
	return nil
}

// ──────────────────────────────────────────────────
// Sets
// ──────────────────────────────────────────────────

// SAdd adds members and returns how many were new.
func (s *Store) SAdd(_ context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("sadd"); err != nil {
		return 0, err
	}
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	var added int64
	for _, m := range members {
		if _, exists := set[m]; !exists {
			set[m] = struct{}{}
			added++
		}
	}
	return added, nil
}

// SRem removes members and returns how many were present.
func (s *Store) SRem(_ context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("srem"); err != nil {
		return 0, err
	}
	set := s.sets[key]
	var removed int64
	for _, m := range members {
		if _, exists := set[m]; exists {
			delete(set, m)
			removed++
		}
	}
	return removed, nil
}

// SPop removes and returns an arbitrary member.
func (s *Store) SPop(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("spop"); err != nil {
		return "", false, err
	}
	for m := range s.sets[key] {
		delete(s.sets[key], m)
		return m, true, nil
	}
	return "", false, nil
}

// SIsMember reports whether member is in the set.
func (s *Store) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("sismember"); err != nil {
		return false, err
	}
	_, ok := s.sets[key][member]
	return ok, nil
}

// SMembers returns every member in lexical order.
func (s *Store) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("smembers"); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// ──────────────────────────────────────────────────
// Sorted sets
// ──────────────────────────────────────────────────

func (s *Store) zset(key string) map[string]float64 {
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	return z
}

// ZAdd upserts member with score.
func (s *Store) ZAdd(_ context.Context, key, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("zadd"); err != nil {
		return err
	}
	s.zset(key)[member] = score
	return nil
}

// ZAddNX inserts member only if absent.
func (s *Store) ZAddNX(_ context.Context, key, member string, score float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("zadd nx"); err != nil {
		return false, err
	}
	z := s.zset(key)
	if _, ok := z[member]; ok {
		return false, nil
	}
	z[member] = score
	return true, nil
}

// ZRem removes members.
func (s *Store) ZRem(_ context.Context, key string, members ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("zrem"); err != nil {
		return 0, err
	}
	z := s.zsets[key]
	var removed int64
	for _, m := range members {
		if _, ok := z[m]; ok {
			delete(z, m)
			removed++
		}
	}
	return removed, nil
}

// ZScore returns the score of member.
func (s *Store) ZScore(_ context.Context, key, member string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("zscore"); err != nil {
		return 0, false, err
	}
	score, ok := s.zsets[key][member]
	return score, ok, nil
}

// ZRangeByScore returns members within [minScore, maxScore], ascending.
func (s *Store) ZRangeByScore(_ context.Context, key string, minScore, maxScore float64) ([]store.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("zrangebyscore"); err != nil {
		return nil, err
	}
	var out []store.Member
	for m, score := range s.zsets[key] {
		if score >= minScore && score <= maxScore {
			out = append(out, store.Member{Value: m, Score: score})
		}
	}
	sortMembers(out)
	return out, nil
}

// ZRange returns every member ascending by score.
func (s *Store) ZRange(_ context.Context, key string) ([]store.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("zrange"); err != nil {
		return nil, err
	}
	out := make([]store.Member, 0, len(s.zsets[key]))
	for m, score := range s.zsets[key] {
		out = append(out, store.Member{Value: m, Score: score})
	}
	sortMembers(out)
	return out, nil
}

// sortMembers orders by score then member, as Redis does.
func sortMembers(ms []store.Member) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].Score != ms[j].Score {
			return ms[i].Score < ms[j].Score
		}
		return ms[i].Value < ms[j].Value
	})
}

// ──────────────────────────────────────────────────
// Hashes
// ──────────────────────────────────────────────────

// HSet sets field in the hash at key.
func (s *Store) HSet(_ context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("hset"); err != nil {
		return err
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	h[field] = value
	return nil
}

// HGet returns one field of the hash at key.
func (s *Store) HGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("hget"); err != nil {
		return "", false, err
	}
	v, ok := s.hashes[key][field]
	return v, ok, nil
}

// HDel removes fields from the hash at key.
func (s *Store) HDel(_ context.Context, key string, fields ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("hdel"); err != nil {
		return 0, err
	}
	h := s.hashes[key]
	var removed int64
	for _, f := range fields {
		if _, ok := h[f]; ok {
			delete(h, f)
			removed++
		}
	}
	return removed, nil
}

// HGetAll returns a copy of the hash at key.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("hgetall"); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		out[f] = v
	}
	return out, nil
}

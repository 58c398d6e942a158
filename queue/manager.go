package queue

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/huffmsa/nuts/codec"
	"github.com/huffmsa/nuts/store"
)

var negInf = math.Inf(-1)

// errMalformed marks a stored record that could not be decoded.
var errMalformed = errors.New("malformed record")

// Option configures a Manager.
type Option func(*Manager)

// WithKeyPrefix sets the prefix of every key the manager touches.
func WithKeyPrefix(prefix string) Option {
	return func(m *Manager) { m.keys = NewKeys(prefix) }
}

// WithCodec sets the record codec.
func WithCodec(c codec.Codec) Option {
	return func(m *Manager) { m.codec = c }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager performs queue transitions against a store.Store. It holds no
// state of its own and is safe for concurrent use.
type Manager struct {
	store  store.Store
	codec  codec.Codec
	keys   Keys
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates a Manager.
func NewManager(s store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		codec:  codec.JSON{},
		keys:   NewKeys("nuts"),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Keys returns the key layout in use.
func (m *Manager) Keys() Keys { return m.keys }

// Codec returns the record codec in use.
func (m *Manager) Codec() codec.Codec { return m.codec }

// Store returns the underlying store.
func (m *Manager) Store() store.Store { return m.store }

// Now returns the manager's current time.
func (m *Manager) Now() time.Time { return m.now() }

func (m *Manager) encode(v any) (string, error) {
	data, err := m.codec.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("queue: encode: %w", err)
	}
	return string(data), nil
}

func (m *Manager) decode(s string, v any) error {
	if err := m.codec.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("queue: %w: %w", errMalformed, err)
	}
	return nil
}

// score converts a time to the epoch-seconds score used by sorted sets.
func score(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// fromScore converts an epoch-seconds score back to a time.
func fromScore(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second))).UTC()
}

package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/huffmsa/nuts/store"
)

// Heartbeats maintains expiring liveness keys for workers.
type Heartbeats struct {
	store store.KV
	key   func(workerID string) string
	ttl   time.Duration
	now   func() time.Time
}

// NewHeartbeats creates a Heartbeats writing keys produced by key with the
// given expiry.
func NewHeartbeats(s store.KV, key func(workerID string) string, ttl time.Duration) *Heartbeats {
	return &Heartbeats{store: s, key: key, ttl: ttl, now: time.Now}
}

// Beat refreshes the liveness key of workerID.
func (h *Heartbeats) Beat(ctx context.Context, workerID string) error {
	stamp := h.now().UTC().Format(time.RFC3339Nano)
	if err := h.store.SetEX(ctx, h.key(workerID), stamp, h.ttl); err != nil {
		return fmt.Errorf("cluster: heartbeat %s: %w", workerID, err)
	}
	return nil
}

// Alive reports whether workerID's liveness key exists.
func (h *Heartbeats) Alive(ctx context.Context, workerID string) (bool, error) {
	_, ok, err := h.store.Get(ctx, h.key(workerID))
	if err != nil {
		return false, fmt.Errorf("cluster: liveness %s: %w", workerID, err)
	}
	return ok, nil
}

// Forget removes the liveness key of workerID, used on graceful shutdown.
func (h *Heartbeats) Forget(ctx context.Context, workerID string) error {
	if err := h.store.Delete(ctx, h.key(workerID)); err != nil {
		return fmt.Errorf("cluster: forget %s: %w", workerID, err)
	}
	return nil
}

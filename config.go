package nuts

import (
	"fmt"
	"time"
)

// Config holds the tunables shared by every component of a worker process.
type Config struct {
	// KeyPrefix namespaces every key written to the shared store.
	KeyPrefix string `yaml:"key_prefix"`

	// Concurrency is the number of execution slots in this process.
	Concurrency int `yaml:"concurrency"`

	// PollInterval is how long an idle slot sleeps before claiming again.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ElectionInterval is how often the process campaigns for leadership
	// and, while leader, runs the promotion and workflow duties.
	ElectionInterval time.Duration `yaml:"election_interval"`

	// LeaseTTL is the expiry of the leader lease. Must exceed
	// ElectionInterval or leadership flaps between renewals.
	LeaseTTL time.Duration `yaml:"lease_ttl"`

	// HeartbeatInterval is how often each slot refreshes its liveness key.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// HeartbeatTTL is the expiry of a liveness key.
	HeartbeatTTL time.Duration `yaml:"heartbeat_ttl"`

	// StaleJobThreshold is how long a running entry may exist without a
	// live worker before the recovery sweep re-enqueues it. Zero disables
	// the sweep.
	StaleJobThreshold time.Duration `yaml:"stale_job_threshold"`

	// CancelPollInterval is how often a running job's cancel request is
	// checked.
	CancelPollInterval time.Duration `yaml:"cancel_poll_interval"`

	// ShutdownTimeout is the maximum time to wait for in-flight jobs.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ClaimRate limits claims per second across all slots. Zero means
	// unlimited.
	ClaimRate float64 `yaml:"claim_rate"`

	// ClaimBurst is the burst size used with ClaimRate.
	ClaimBurst int `yaml:"claim_burst"`

	// Codec names the record encoding: "json" or "msgpack".
	Codec string `yaml:"codec"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:          "nuts",
		Concurrency:        1,
		PollInterval:       1 * time.Second,
		ElectionInterval:   1 * time.Second,
		LeaseTTL:           5 * time.Second,
		HeartbeatInterval:  5 * time.Second,
		HeartbeatTTL:       15 * time.Second,
		StaleJobThreshold:  60 * time.Second,
		CancelPollInterval: 1 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		Codec:              "json",
	}
}

// Validate reports whether the configuration can run a worker.
func (c Config) Validate() error {
	switch {
	case c.KeyPrefix == "":
		return fmt.Errorf("%w: key prefix is empty", ErrInvalidConfig)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	case c.ElectionInterval <= 0:
		return fmt.Errorf("%w: election interval must be positive", ErrInvalidConfig)
	case c.LeaseTTL <= c.ElectionInterval:
		return fmt.Errorf("%w: lease ttl %s must exceed election interval %s",
			ErrInvalidConfig, c.LeaseTTL, c.ElectionInterval)
	case c.HeartbeatInterval <= 0 || c.HeartbeatTTL <= c.HeartbeatInterval:
		return fmt.Errorf("%w: heartbeat ttl %s must exceed heartbeat interval %s",
			ErrInvalidConfig, c.HeartbeatTTL, c.HeartbeatInterval)
	case c.StaleJobThreshold < 0:
		return fmt.Errorf("%w: stale job threshold is negative", ErrInvalidConfig)
	case c.CancelPollInterval <= 0:
		return fmt.Errorf("%w: cancel poll interval must be positive", ErrInvalidConfig)
	case c.ClaimRate < 0:
		return fmt.Errorf("%w: claim rate is negative", ErrInvalidConfig)
	case c.Codec != "json" && c.Codec != "msgpack":
		return fmt.Errorf("%w: unknown codec %q", ErrInvalidConfig, c.Codec)
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/huffmsa/nuts"
)

const defaultRedisURL = "redis://localhost:6379"

// Settings is the configuration of a nuts process. Values are resolved in
// order: defaults, the YAML file, NUTS_* environment variables, then
// command-line flags.
type Settings struct {
	RedisURL  string      `yaml:"redis_url"`
	HTTPAddr  string      `yaml:"http_addr"`
	Workflows string      `yaml:"workflows"`
	Worker    nuts.Config `yaml:"worker"`
}

func defaultSettings() Settings {
	return Settings{
		RedisURL: defaultRedisURL,
		Worker:   nuts.DefaultConfig(),
	}
}

// loadSettings reads path (optional) and applies environment overrides
// from lookup.
func loadSettings(path string, lookup func(string) (string, bool)) (Settings, error) {
	s := defaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return s, fmt.Errorf("config file %s not found", path)
		case err != nil:
			return s, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&s, lookup); err != nil {
		return s, err
	}
	return s, nil
}

func applyEnv(s *Settings, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("REDIS_URL", &s.RedisURL)
	str("NUTS_REDIS_URL", &s.RedisURL)
	str("NUTS_HTTP_ADDR", &s.HTTPAddr)
	str("NUTS_WORKFLOWS", &s.Workflows)
	str("NUTS_KEY_PREFIX", &s.Worker.KeyPrefix)
	str("NUTS_CODEC", &s.Worker.Codec)

	if v, ok := lookup("NUTS_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("NUTS_CONCURRENCY: %w", err)
		}
		s.Worker.Concurrency = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"NUTS_POLL_INTERVAL", &s.Worker.PollInterval},
		{"NUTS_LEASE_TTL", &s.Worker.LeaseTTL},
		{"NUTS_STALE_JOB_THRESHOLD", &s.Worker.StaleJobThreshold},
		{"NUTS_SHUTDOWN_TIMEOUT", &s.Worker.ShutdownTimeout},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// extendScript resets the TTL of KEYS[1] only while it holds ARGV[1].
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// deleteScript deletes KEYS[1] only while it holds ARGV[1].
var deleteScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Get returns the value of key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if isNil(err) {
			return "", false, nil
		}
		return "", false, unavailable("get", err)
	}
	return v, true, nil
}

// SetNX sets key with ttl only if it is absent.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, unavailable("setnx", err)
	}
	return ok, nil
}

// SetEX sets key with ttl.
func (s *Store) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("setex", err)
	}
	return nil
}

// ExtendIfEqual resets the expiry of key while it holds value.
func (s *Store) ExtendIfEqual(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	n, err := extendScript.Run(ctx, s.client, []string{key}, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, unavailable("extend if equal", err)
	}
	return n == 1, nil
}

// DeleteIfEqual deletes key while it holds value.
func (s *Store) DeleteIfEqual(ctx context.Context, key, value string) (bool, error) {
	n, err := deleteScript.Run(ctx, s.client, []string{key}, value).Int64()
	if err != nil {
		return false, unavailable("delete if equal", err)
	}
	return n == 1, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

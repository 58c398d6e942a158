package redis

import (
	"context"
	"math"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/huffmsa/nuts/store"
)

// ── Sets ──

// SAdd adds members to the set at key.
func (s *Store) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	n, err := s.client.SAdd(ctx, key, toAny(members)...).Result()
	if err != nil {
		return 0, unavailable("sadd", err)
	}
	return n, nil
}

// SRem removes members from the set at key.
func (s *Store) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	n, err := s.client.SRem(ctx, key, toAny(members)...).Result()
	if err != nil {
		return 0, unavailable("srem", err)
	}
	return n, nil
}

// SPop removes and returns one random member.
func (s *Store) SPop(ctx context.Context, key string) (string, bool, error) {
	m, err := s.client.SPop(ctx, key).Result()
	if err != nil {
		if isNil(err) {
			return "", false, nil
		}
		return "", false, unavailable("spop", err)
	}
	return m, true, nil
}

// SIsMember reports whether member belongs to the set at key.
func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, unavailable("sismember", err)
	}
	return ok, nil
}

// SMembers returns every member of the set at key.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	ms, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, unavailable("smembers", err)
	}
	return ms, nil
}

// ── Sorted sets ──

// ZAdd upserts member with score.
func (s *Store) ZAdd(ctx context.Context, key, member string, score float64) error {
	if err := s.client.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err(); err != nil {
		return unavailable("zadd", err)
	}
	return nil
}

// ZAddNX inserts member only if absent.
func (s *Store) ZAddNX(ctx context.Context, key, member string, score float64) (bool, error) {
	n, err := s.client.ZAddNX(ctx, key, goredis.Z{Score: score, Member: member}).Result()
	if err != nil {
		return false, unavailable("zadd nx", err)
	}
	return n == 1, nil
}

// ZRem removes members from the sorted set at key.
func (s *Store) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	n, err := s.client.ZRem(ctx, key, toAny(members)...).Result()
	if err != nil {
		return 0, unavailable("zrem", err)
	}
	return n, nil
}

// ZScore returns the score of member.
func (s *Store) ZScore(ctx context.Context, key, member string) (float64, bool, error) {
	score, err := s.client.ZScore(ctx, key, member).Result()
	if err != nil {
		if isNil(err) {
			return 0, false, nil
		}
		return 0, false, unavailable("zscore", err)
	}
	return score, true, nil
}

// ZRangeByScore returns members with scores in [minScore, maxScore].
func (s *Store) ZRangeByScore(ctx context.Context, key string, minScore, maxScore float64) ([]store.Member, error) {
	zs, err := s.client.ZRangeByScoreWithScores(ctx, key, &goredis.ZRangeBy{
		Min: formatScore(minScore),
		Max: formatScore(maxScore),
	}).Result()
	if err != nil {
		return nil, unavailable("zrangebyscore", err)
	}
	return toMembers(zs), nil
}

// ZRange returns every member ascending by score.
func (s *Store) ZRange(ctx context.Context, key string) ([]store.Member, error) {
	zs, err := s.client.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, unavailable("zrange", err)
	}
	return toMembers(zs), nil
}

// ── Hashes ──

// HSet sets one field of the hash at key.
func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	if err := s.client.HSet(ctx, key, field, value).Err(); err != nil {
		return unavailable("hset", err)
	}
	return nil
}

// HGet returns one field of the hash at key.
func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if err != nil {
		if isNil(err) {
			return "", false, nil
		}
		return "", false, unavailable("hget", err)
	}
	return v, true, nil
}

// HDel removes fields from the hash at key.
func (s *Store) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	n, err := s.client.HDel(ctx, key, fields...).Result()
	if err != nil {
		return 0, unavailable("hdel", err)
	}
	return n, nil
}

// HGetAll returns every field of the hash at key.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, unavailable("hgetall", err)
	}
	return m, nil
}

// ── helpers ──

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func toMembers(zs []goredis.Z) []store.Member {
	out := make([]store.Member, 0, len(zs))
	for _, z := range zs {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, store.Member{Value: m, Score: z.Score})
	}
	return out
}

func formatScore(f float64) string {
	switch {
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsInf(f, 1):
		return "+inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

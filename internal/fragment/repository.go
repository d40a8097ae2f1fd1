package fragment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Repository persists partial fragment sets keyed by carrier and message id.
// Upsert is atomic: concurrent deliveries of different segments cannot both
// observe an incomplete set when the last segment lands.
type Repository interface {
	// Upsert stores one segment and returns the ordered payloads when the set
	// is complete, nil otherwise. A complete set stays stored until Remove, so
	// a delivery that fails after assembly can be recovered by redelivering
	// the segment that completed it.
	Upsert(ctx context.Context, key string, index, count int, payload string, ttl time.Duration) ([]string, error)

	// ExpiredSets returns tracked set keys whose deadline passed, removing
	// them from tracking and deleting their data.
	ExpiredSets(ctx context.Context, now time.Time, limit int64) ([]string, error)

	// Remove deletes a set and its deadline entry once the assembled message
	// has been handed off.
	Remove(ctx context.Context, key string) error
}

const trackingKey = "fragments:deadlines"

// upsertScript stores a segment under its 1-based index, refreshes the TTL,
// and returns the ordered payloads once every index is present. The set is
// left in place; the caller removes it after the assembled message is handed
// off, so redelivery of the completing segment yields the parts again after a
// downstream failure. KEYS[1] is the set key, KEYS[2] the deadline index.
// ARGV: index, count, payload, ttl seconds, deadline unix.
var upsertScript = redis.NewScript(`
redis.call('HSET', KEYS[1], 'count', ARGV[2])
redis.call('HSET', KEYS[1], 'seg:' .. ARGV[1], ARGV[3])
redis.call('EXPIRE', KEYS[1], ARGV[4])
redis.call('ZADD', KEYS[2], ARGV[5], KEYS[1])

local count = tonumber(ARGV[2])
local have = redis.call('HLEN', KEYS[1]) - 1
if have < count then
    return {}
end

local parts = {}
for i = 1, count do
    local seg = redis.call('HGET', KEYS[1], 'seg:' .. i)
    if not seg then
        return {}
    end
    parts[i] = seg
end
return parts
`)

type RedisRepository struct {
	client *redis.Client
}

func NewRepository(client *redis.Client) Repository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Upsert(ctx context.Context, key string, index, count int, payload string, ttl time.Duration) ([]string, error) {
	deadline := time.Now().Add(ttl).Unix()
	res, err := upsertScript.Run(ctx, r.client,
		[]string{key, trackingKey},
		index, count, payload, int(ttl.Seconds()), deadline,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("fragment upsert failed: %w", err)
	}

	raw, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected fragment upsert reply type %T", res)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	parts := make([]string, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected fragment part type %T at index %d", v, i)
		}
		parts[i] = s
	}
	return parts, nil
}

func (r *RedisRepository) ExpiredSets(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	keys, err := r.client.ZRangeByScore(ctx, trackingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("fragment deadline scan failed: %w", err)
	}

	for _, key := range keys {
		if err := r.Remove(ctx, key); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (r *RedisRepository) Remove(ctx context.Context, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, trackingKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fragment remove failed: %w", err)
	}
	return nil
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "tipjar:ratelimit:"

// hitLuaScript increments the window counter, starting the window on the
// first hit. Returns {count, remaining ttl in ms}.
const hitLuaScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`

// RedisStore shares counters between relay instances. Keys expire with
// their window so Sweep has nothing to do.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	length time.Duration
	hit    *redis.Script
}

func NewRedisStore(client redis.UniversalClient, length time.Duration) *RedisStore {
	if length <= 0 {
		length = DefaultWindow
	}
	return &RedisStore{
		client: client,
		prefix: DefaultKeyPrefix,
		length: length,
		hit:    redis.NewScript(hitLuaScript),
	}
}

// NewRedisStoreFromURL parses a redis:// URL and builds a store on it.
func NewRedisStoreFromURL(rawURL string, length time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), length), nil
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	res, err := s.hit.Run(ctx, s.client, []string{s.prefix + key}, s.length.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit hit %s: %w", key, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit hit %s: unexpected reply %v", key, res)
	}
	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = s.length
	}
	return Decision{
		Allowed:    count <= limit,
		Count:      count,
		RetryAfter: ttl,
	}, nil
}

func (s *RedisStore) Sweep(context.Context) {}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

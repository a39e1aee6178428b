package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

const (
	conversationsKey = "inbox:conversations"
	generationKey    = "inbox:conversations:gen"
)

// KEYS[1] list, KEYS[2] generation; ARGV[1] expected generation, ARGV[2]
// value, ARGV[3] ttl in ms (0 = no expiry).
var setIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) ([]model.Conversation, bool, error) {
	raw, err := c.rdb.Get(ctx, conversationsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var convs []model.Conversation
	if err := json.Unmarshal(raw, &convs); err != nil {
		return nil, false, err
	}
	return convs, true, nil
}

func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) Set(ctx context.Context, gen int64, convs []model.Conversation) error {
	if convs == nil {
		convs = []model.Conversation{}
	}
	b, err := json.Marshal(convs)
	if err != nil {
		return err
	}
	return setIfCurrent.Run(ctx, c.rdb,
		[]string{conversationsKey, generationKey},
		gen, b, c.ttl.Milliseconds(),
	).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, generationKey)
		p.Del(ctx, conversationsKey)
		return nil
	})
	return err
}

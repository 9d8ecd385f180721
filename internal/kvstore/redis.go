package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindowScript runs the admission read-check-increment-expire sequence as
// one server-side unit. KEYS[1] counter, ARGV[1] limit, ARGV[2] window seconds.
var incrWindowScript = redis.NewScript(`
local c = redis.call('get', KEYS[1])
if c and tonumber(c) > tonumber(ARGV[1]) then
  return tonumber(c)
end
c = redis.call('incr', KEYS[1])
if tonumber(c) == 1 then
  redis.call('expire', KEYS[1], ARGV[2])
end
return c
`)

// compareAndDeleteScript deletes KEYS[1] when it holds ARGV[1]. Returns 1 when deleted.
var compareAndDeleteScript = redis.NewScript(`
if redis.call('get', KEYS[1]) == ARGV[1] then
  return redis.call('del', KEYS[1])
end
return 0
`)

// DefaultOpTimeout bounds each store call when the caller's context has no deadline.
const DefaultOpTimeout = 3 * time.Second

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. opTimeout <= 0 uses DefaultOpTimeout.
func NewRedisStore(client redis.UniversalClient, opTimeout time.Duration) *RedisStore {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &RedisStore{client: client, opTimeout: opTimeout}
}

// OpenRedis parses a redis:// URL, connects and pings.
func OpenRedis(ctx context.Context, url string, opTimeout time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("kvstore: parse redis url: %w", err)
	}
	s := NewRedisStore(redis.NewClient(opts), opTimeout)
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	v, err := s.client.Get(ctx, key).Result()
	return v, wrap(err)
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return wrap(s.client.Set(ctx, key, value, 0).Err())
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return wrap(s.client.Set(ctx, key, value, ttl).Err())
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return wrap(s.client.Del(ctx, keys...).Err())
}

func (s *RedisStore) HashGet(ctx context.Context, key, field string) (string, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	v, err := s.client.HGet(ctx, key, field).Result()
	return v, wrap(err)
}

func (s *RedisStore) HashPut(ctx context.Context, key, field, value string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return wrap(s.client.HSet(ctx, key, field, value).Err())
}

func (s *RedisStore) HashDelete(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return wrap(s.client.HDel(ctx, key, fields...).Err())
}

func (s *RedisStore) HashKeys(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	v, err := s.client.HKeys(ctx, key).Result()
	return v, wrap(err)
}

func (s *RedisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	v, err := s.client.SMembers(ctx, key).Result()
	return v, wrap(err)
}

func (s *RedisStore) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return wrap(s.client.SAdd(ctx, key, toArgs(members)...).Err())
}

func (s *RedisStore) SetRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return wrap(s.client.SRem(ctx, key, toArgs(members)...).Err())
}

func (s *RedisStore) SetIsMember(ctx context.Context, key, member string) (bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	return ok, wrap(err)
}

func (s *RedisStore) IncrWindow(ctx context.Context, key string, limit int64, window time.Duration) (int64, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	n, err := incrWindowScript.Run(ctx, s.client, []string{key}, strconv.FormatInt(limit, 10), strconv.FormatInt(secs, 10)).Int64()
	return n, wrap(err)
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	n, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, value).Int64()
	if err != nil {
		return false, wrap(err)
	}
	return n == 1, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return wrap(s.client.Ping(ctx).Err())
}

func toArgs(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

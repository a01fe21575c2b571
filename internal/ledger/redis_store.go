package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digkill/magicpixa/internal/models"
)

// AnonymousKeyPrefix namespaces anonymous balances in Redis.
const AnonymousKeyPrefix = "magicpixa:credits:"

var errCounterMissing = errors.New("counter missing")

// counterAPI is the subset of Redis operations the store needs.
type counterAPI interface {
	Get(ctx context.Context, key string) (int, error)
	SetNX(ctx context.Context, key string, value int, ttl time.Duration) (bool, error)
	DecrIfEnough(ctx context.Context, key string, amount int) (balance int, ok bool, err error)
	IncrExisting(ctx context.Context, key string, amount int) (int, error)
}

// RedisStore keeps anonymous balances as Redis integers keyed by session id.
type RedisStore struct {
	counter counterAPI
	ttl     time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{counter: &redisCounter{client: client}, ttl: ttl}
}

func (s *RedisStore) key(id models.Identity) string {
	return AnonymousKeyPrefix + id.SessionID
}

func (s *RedisStore) Load(ctx context.Context, id models.Identity) (int, error) {
	v, err := s.counter.Get(ctx, s.key(id))
	if errors.Is(err, errCounterMissing) {
		return 0, ErrNoBalance
	}
	if err != nil {
		return 0, classifyRedis(err)
	}
	return v, nil
}

func (s *RedisStore) Create(ctx context.Context, id models.Identity, grant int) (int, bool, error) {
	created, err := s.counter.SetNX(ctx, s.key(id), grant, s.ttl)
	if err != nil {
		return 0, false, classifyRedis(err)
	}
	if created {
		return grant, true, nil
	}
	v, err := s.Load(ctx, id)
	return v, false, err
}

func (s *RedisStore) Deduct(ctx context.Context, id models.Identity, amount int) (int, error) {
	v, ok, err := s.counter.DecrIfEnough(ctx, s.key(id), amount)
	if errors.Is(err, errCounterMissing) {
		return 0, ErrNoBalance
	}
	if err != nil {
		return 0, classifyRedis(err)
	}
	if !ok {
		return v, ErrInsufficientCredits
	}
	return v, nil
}

func (s *RedisStore) Add(ctx context.Context, id models.Identity, amount int) (int, error) {
	v, err := s.counter.IncrExisting(ctx, s.key(id), amount)
	if errors.Is(err, errCounterMissing) {
		return 0, ErrNoBalance
	}
	if err != nil {
		return 0, classifyRedis(err)
	}
	return v, nil
}

func classifyRedis(err error) error {
	msg := err.Error()
	if strings.HasPrefix(msg, "NOPERM") || strings.HasPrefix(msg, "NOAUTH") || strings.HasPrefix(msg, "WRONGPASS") {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return unavailable(err)
}

// Scripts return {status, balance}: status -1 missing, 0 refused, 1 applied.
var decrIfEnough = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return {-1, 0} end
v = tonumber(v)
local amount = tonumber(ARGV[1])
if v < amount then return {0, v} end
return {1, redis.call('DECRBY', KEYS[1], amount)}
`)

var incrExisting = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return {-1, 0} end
return {1, redis.call('INCRBY', KEYS[1], tonumber(ARGV[1]))}
`)

type redisCounter struct {
	client *redis.Client
}

func (c *redisCounter) Get(ctx context.Context, key string) (int, error) {
	v, err := c.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, errCounterMissing
	}
	return v, err
}

func (c *redisCounter) SetNX(ctx context.Context, key string, value int, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *redisCounter) DecrIfEnough(ctx context.Context, key string, amount int) (int, bool, error) {
	res, err := decrIfEnough.Run(ctx, c.client, []string{key}, amount).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	return scriptResult(res)
}

func (c *redisCounter) IncrExisting(ctx context.Context, key string, amount int) (int, error) {
	res, err := incrExisting.Run(ctx, c.client, []string{key}, amount).Int64Slice()
	if err != nil {
		return 0, err
	}
	v, _, err := scriptResult(res)
	return v, err
}

func scriptResult(res []int64) (int, bool, error) {
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected script reply %v", res)
	}
	switch res[0] {
	case -1:
		return 0, false, errCounterMissing
	case 0:
		return int(res[1]), false, nil
	default:
		return int(res[1]), true, nil
	}
}

package keyset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/redis/go-redis/v9"
)

const redisPrefix = "slashid:jwks:"

// Redis shares key sets between processes. Expiry is delegated to Redis.
type Redis struct {
	rdb redis.Cmdable
}

var _ Cache = (*Redis)(nil)

func NewRedis(rdb redis.Cmdable) *Redis { return &Redis{rdb: rdb} }

func (r *Redis) Get(ctx context.Context, key string) (jwk.Set, bool, error) {
	b, err := r.rdb.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	set, err := decode(b)
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, set jwk.Set, ttl time.Duration) error {
	b, err := encode(set)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, redisPrefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

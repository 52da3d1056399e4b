package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed holder can keep a workspace locked.
const DefaultTTL = 10 * time.Minute

const pollInterval = 100 * time.Millisecond

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Redis is a cross-process Locker using SET NX PX with a random token.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	mode   Mode
}

// NewRedis returns a Redis-backed locker. A zero ttl uses DefaultTTL.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration, mode Mode) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, mode: mode}
}

// Key returns the Redis key used for a workspace key.
func (r *Redis) Key(key string) string {
	return r.prefix + "lock:" + key
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := r.Key(key)
	token := uuid.NewString()

	ok, err := r.tryAcquire(ctx, redisKey, token)
	if err != nil {
		return nil, err
	}
	if !ok && r.mode == Reject {
		return nil, busy(key)
	}

	if !ok {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for !ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
			if ok, err = r.tryAcquire(ctx, redisKey, token); err != nil {
				return nil, err
			}
		}
	}

	var once sync.Once
	var releaseErr error
	return func() error {
		once.Do(func() {
			// The caller's ctx may already be done when the run ends.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
				releaseErr = fmt.Errorf("redis error releasing lock: %w", err)
			}
		})
		return releaseErr
	}, nil
}

func (r *Redis) tryAcquire(ctx context.Context, redisKey, token string) (bool, error) {
	ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis error acquiring lock: %w", err)
	}
	return ok, nil
}

package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the key.
var ErrNotAcquired = errors.New("lock is held by another owner")

// Locker guards short critical sections shared by several processes, such as
// slot assignment or the publication of a single post.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisLocker(rdb redis.UniversalClient, prefix string) Locker {
	return &redisLocker{rdb: rdb, prefix: prefix}
}

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	fullKey := l.prefix + key
	ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	release := func() {
		// the caller's context may already be cancelled
		if err := releaseScript.Run(context.Background(), l.rdb, []string{fullKey}, token).Err(); err != nil {
			slog.Info(err.Error())
		}
	}
	return release, nil
}

// AcquireWait retries Acquire until it succeeds, ctx ends, or wait elapses.
func AcquireWait(ctx context.Context, l Locker, key string, ttl, wait time.Duration) (func(), error) {
	deadline := time.Now().Add(wait)
	backoff := 25 * time.Millisecond
	for {
		release, err := l.Acquire(ctx, key, ttl)
		if !errors.Is(err, ErrNotAcquired) {
			return release, err
		}
		if time.Now().Add(backoff).After(deadline) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

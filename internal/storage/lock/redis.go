package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/doj-records/records/internal/shared"
)

const defaultRetryInterval = 25 * time.Millisecond

// ErrLockTimeout is returned when the lease could not be obtained before
// the context ended.
var ErrLockTimeout = errors.New("lock: timed out waiting for collection lock")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis serializes writers across processes sharing one data directory using
// a token-guarded lease. The lease is renewed while held. When Redis cannot
// be reached the lock degrades to the in-process keyed mutex, which keeps
// writers inside this process serialized but not writers in other processes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	local  *Local
	logger *slog.Logger
}

// NewRedis constructs a Redis lease locker. A non-positive ttl defaults to ten seconds.
func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, ttl: ttl, retry: defaultRetryInterval, local: NewLocal(), logger: logger}
}

// Lock polls until the lease is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, collection string) (func(), error) {
	key := shared.CollectionLockKey(collection)
	token := uuid.NewString()
	ticker := time.NewTicker(r.retry)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrLockTimeout, collection)
			}
			r.logger.WarnContext(ctx, "redis lock unavailable, using in-process lock",
				slog.String("collection", collection), slog.Any("error", err))
			return r.local.Lock(ctx, collection)
		}
		if ok {
			return r.hold(ctx, collection, key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, collection)
		case <-ticker.C:
		}
	}
}

// hold keeps the lease alive until the returned release function runs.
func (r *Redis) hold(ctx context.Context, collection, key, token string) func() {
	bg := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n, err := renewScript.Run(bg, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
				if err != nil || n == 0 {
					r.logger.WarnContext(bg, "redis lock lease not renewed",
						slog.String("collection", collection), slog.Any("error", err))
					return
				}
			}
		}
	}()
	return func() {
		close(stop)
		<-done
		n, err := releaseScript.Run(bg, r.client, []string{key}, token).Int()
		if err != nil {
			r.logger.WarnContext(bg, "redis lock release failed",
				slog.String("collection", collection), slog.Any("error", err))
			return
		}
		if n == 0 {
			r.logger.WarnContext(bg, "redis lock lease expired or taken before release",
				slog.String("collection", collection))
		}
	}
}

package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"hmdamart/pkg/platform/sentinel"
)

const (
	keyPrefix  = "lock:"
	defaultTTL = 2 * time.Minute
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only if it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a single-instance Redis lease. The lease expires after the
// TTL unless renewed; it is renewed in the background at a third of the TTL
// until released.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type RedisOption func(*RedisLocker)

func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(l *RedisLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client: client,
		ttl:    defaultTTL,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	rkey := keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, rkey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %q: %w", key, unavailable(err))
	}
	if !ok {
		return nil, fmt.Errorf("lock %q held: %w", key, sentinel.ErrConflict)
	}

	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go l.renew(renewCtx, rkey, token, done)

	var once sync.Once
	var releaseErr error
	return func(ctx context.Context) error {
		once.Do(func() {
			stop()
			<-done
			n, err := releaseScript.Run(ctx, l.client, []string{rkey}, token).Int()
			switch {
			case err != nil:
				releaseErr = fmt.Errorf("release lock %q: %w", key, unavailable(err))
			case n == 0:
				// Expired and possibly taken by someone else.
				releaseErr = fmt.Errorf("release lock %q: lease lost: %w", key, sentinel.ErrInvalidState)
			}
		})
		return releaseErr
	}, nil
}

func (l *RedisLocker) renew(ctx context.Context, rkey, token string, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := renewScript.Run(ctx, l.client, []string{rkey}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.WarnContext(ctx, "failed to renew run lock", "key", rkey, "error", err)
				continue
			}
			if n == 0 {
				l.logger.WarnContext(ctx, "run lock lease lost", "key", rkey)
				return
			}
		}
	}
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(sentinel.ErrUnavailable, err)
}

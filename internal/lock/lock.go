// Package lock keeps two sync runs from overlapping.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLocked = errors.New("a sync run is already in progress")

// Release frees a held lock.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context) (Release, error)
}

// Noop always grants the lock. It is used when no lock backend is configured.
type Noop struct{}

func (Noop) Acquire(context.Context) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

const (
	DefaultKey = "duesync:run-lock"
	DefaultTTL = 15 * time.Minute
)

// the lock is only deleted by the holder that set it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Option func(*Redis)

func WithLogger(l *zap.Logger) Option {
	return func(r *Redis) {
		r.logger = l
	}
}

func WithKey(key string) Option {
	return func(r *Redis) {
		r.key = key
	}
}

// WithTTL bounds how long a crashed holder can block other runs.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

type Redis struct {
	client *redis.Client
	logger *zap.Logger
	key    string
	ttl    time.Duration
}

func NewRedis(addr string, opts ...Option) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr}), opts...)
}

func NewRedisWithClient(client *redis.Client, opts ...Option) *Redis {
	r := &Redis{
		client: client,
		logger: zap.NewNop(),
		key:    DefaultKey,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Acquire(ctx context.Context) (Release, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Warn("run lock held elsewhere", zap.String("key", r.key))
		return nil, ErrLocked
	}

	r.logger.Debug("run lock acquired",
		zap.String("key", r.key),
		zap.Duration("ttl", r.ttl),
	)
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, r.client, []string{r.key}, token).Err()
	}, nil
}

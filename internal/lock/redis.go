package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

const (
	defaultLockTTL       = 10 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
	defaultKeyPrefix     = "foodtrack:lock:"
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит нашему токену.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisOptions — параметры распределённой блокировки.
type RedisOptions struct {
	TTL           time.Duration
	RetryInterval time.Duration
	KeyPrefix     string
	Logger        *log.Entry
}

// Redis реализует распределённую блокировку на SET NX PX для нескольких реплик сервиса.
type Redis struct {
	client        redis.Cmdable
	ttl           time.Duration
	retryInterval time.Duration
	prefix        string
	logger        *log.Entry
}

var _ domain.Locker = (*Redis)(nil)

// NewRedis создаёт locker поверх клиента go-redis.
func NewRedis(client redis.Cmdable, opts RedisOptions) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = defaultLockTTL
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "redis-lock")
	}
	return &Redis{
		client:        client,
		ttl:           opts.TTL,
		retryInterval: opts.RetryInterval,
		prefix:        opts.KeyPrefix,
		logger:        opts.Logger,
	}
}

// Lock пытается занять ключ до истечения ctx.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: acquire lock %s: %v", domain.ErrTransient, key, err)
		}
		if ok {
			return func() { r.release(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w: %v", domain.ErrTransient, domain.ErrLockNotAcquired, ctx.Err())
		case <-time.After(r.retryInterval):
		}
	}
}

func (r *Redis) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
		r.logger.WithError(err).WithField("key", redisKey).Warn("failed to release lock")
	}
}

package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "transit_pulse:lock:"
	minRetryDelay    = 10 * time.Millisecond
	maxRetryDelay    = 250 * time.Millisecond
	releaseTimeout   = 2 * time.Second
)

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу токена
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker - распределённая блокировка по ключу (SET NX PX) для нескольких инстансов сервиса.
// TTL ограничивает время владения, если процесс упал, не освободив ключ.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		prefix: defaultKeyPrefix,
	}
}

// Lock опрашивает Redis с растущей задержкой, пока ключ не освободится или не истечёт контекст
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()
	delay := minRetryDelay

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire redis lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(redisKey, token) }, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

func (l *RedisLocker) release(redisKey, token string) {
	// Контекст вызывающего мог быть уже отменён, освобождаем независимо от него
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	// При ошибке ключ освободится по TTL
	_ = releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
}

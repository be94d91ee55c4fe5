// Package lock содержит распределённую блокировку продавцов на Redis.
package lock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix          = "seller-tier:lock:"
	defaultTTL         = 2 * time.Minute
	defaultRetryPeriod = 100 * time.Millisecond
	releaseTimeout     = 2 * time.Second
)

// Снимает блокировку, только если она всё ещё принадлежит владельцу токена.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Продлевает блокировку владельца токена на ARGV[2] миллисекунд.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Connect создаёт клиент Redis по URL (redis://...) или адресу host:port.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisLocker сериализует оценки продавца между несколькими экземплярами сервиса.
type RedisLocker struct {
	client      *redis.Client
	ttl         time.Duration
	retryPeriod time.Duration
}

// NewRedisLocker создаёт блокировку с указанным временем жизни ключа.
// TTL ограничивает время удержания блокировки упавшим экземпляром.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{
		client:      client,
		ttl:         ttl,
		retryPeriod: defaultRetryPeriod,
	}
}

// Lock ожидает освобождения ключа продавца и захватывает его.
// Пока блокировка удерживается, ключ продлевается каждые ttl/3. Если продлить
// не удалось, возвращённый контекст отменяется.
func (l *RedisLocker) Lock(ctx context.Context, key string) (context.Context, func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryPeriod)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, ctx.Err()
		case <-timer.C:
		}
	}

	held, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		l.keepAlive(held, cancel, done, redisKey, token)
	}()

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(done)
			<-stopped
			cancel()

			ctx, cancelRelease := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancelRelease()
			_ = releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err()
		})
	}, nil
}

func (l *RedisLocker) keepAlive(held context.Context, lost context.CancelFunc, done <-chan struct{}, redisKey, token string) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-held.Done():
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
		renewed, err := renewScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		if err != nil || renewed == 0 {
			lost()
			return
		}
	}
}

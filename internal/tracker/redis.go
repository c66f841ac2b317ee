package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	logx "voucherbot/pkg/logx"
)

// redisBackend stores the mapping document under a single key, matching the
// persisted layout of the file backend so drivers are interchangeable.
type redisBackend struct {
	client *redis.Client
	key    string
}

func openRedis(cfg Config, log logx.Logger) (Backend, error) {
	if cfg.Redis.Addr == "" {
		return nil, errors.New("storage.redis.addr is required for redis driver")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	log.Info("redis storage connected", logx.String("addr", cfg.Redis.Addr))
	return &redisBackend{client: rdb, key: trackedUsersKey}, nil
}

func (b *redisBackend) Load(ctx context.Context) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (b *redisBackend) Save(ctx context.Context, data []byte) error {
	return b.client.Set(ctx, b.key, data, 0).Err()
}

func (b *redisBackend) Close() error { return b.client.Close() }

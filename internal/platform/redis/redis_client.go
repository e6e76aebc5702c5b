// Package redis はキャッシュ用のRedisクライアントを生成します。
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"stockwatcher/internal/platform/config"
	"stockwatcher/internal/platform/logging"
)

const pingTimeout = 3 * time.Second

// NewRedisClient は設定からクライアントを生成して疎通を確認します。
// ホストが未設定の場合は (nil, nil) を返し、呼び出し側はキャッシュなしで動作します。
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		logging.Info().Msg("redis not configured; running without cache")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	// 接続確認
	if err := rdb.Ping(ctx).Err(); err != nil {
		logging.Error().Err(err).Str("address", cfg.Addr()).Msg("redis connection failed")
		_ = rdb.Close()
		return nil, err
	}

	logging.Info().Str("address", cfg.Addr()).Msg("redis connection successful")
	return rdb, nil
}

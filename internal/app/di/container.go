// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"fmt"

	redisv9 "github.com/redis/go-redis/v9"

	commentadapters "stockwatcher/internal/feature/comments/adapters"
	propadapters "stockwatcher/internal/feature/properties/adapters"
	stockadapters "stockwatcher/internal/feature/stocks/adapters"
	summaryusecase "stockwatcher/internal/feature/summaries/usecase"
	useradapters "stockwatcher/internal/feature/users/adapters"
	watchlistadapters "stockwatcher/internal/feature/watchlists/adapters"
	"stockwatcher/internal/platform/cache"
	"stockwatcher/internal/platform/config"
	"stockwatcher/internal/platform/db"
	"stockwatcher/internal/platform/logging"
	infraredis "stockwatcher/internal/platform/redis"
	"stockwatcher/internal/platform/store"
)

// Container はアプリケーション全体で共有するコンポーネントを保持します。
type Container struct {
	Config *config.Config
	DB     *db.Manager
	Redis  *redisv9.Client
	Exec   *store.Executor

	Counter     *stockadapters.StockCounter
	Stocks      *stockadapters.StockRepository
	Comments    *commentadapters.CommentRepository
	WatchLists  *watchlistadapters.WatchListRepository
	Users       *useradapters.UserRepository
	Properties  *propadapters.PropertyRepository
	ClosePrices *cache.CachingClosePriceRepository
	Aggregator  *summaryusecase.Aggregator
}

// Models はスキーマに含まれるすべてのテーブルモデルです。
func Models() []interface{} {
	var models []interface{}
	models = append(models, stockadapters.Models()...)
	models = append(models, commentadapters.Models()...)
	models = append(models, watchlistadapters.Models()...)
	models = append(models, useradapters.Models()...)
	models = append(models, propadapters.Models()...)
	return models
}

// DefaultOptions は設定から全呼び出しの既定 Statement Options を作ります。
func DefaultOptions(cfg config.DatabaseConfig) (store.Options, error) {
	c, err := store.ParseConsistency(cfg.Consistency)
	if err != nil {
		return store.Options{}, err
	}
	opts := store.DefaultOptions()
	opts.Consistency = c
	return opts, nil
}

// New はクラスタとRedisに接続してコンテナを構築します。
// Redisに接続できない場合はキャッシュなしで続行します。
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	defaults, err := DefaultOptions(cfg.Database)
	if err != nil {
		return nil, err
	}

	manager, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open cluster: %w", err)
	}
	if cfg.Database.RunMigrations {
		if err := db.Migrate(manager.DB(), Models()...); err != nil {
			manager.Shutdown()
			return nil, err
		}
	}

	rdb, err := infraredis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logging.Warn().Err(err).Msg("redis unavailable; running without cache")
		rdb = nil
	}

	return Build(cfg, manager, rdb, defaults), nil
}

// Build は接続済みのハンドルからリポジトリと集計ジョブを組み立てます。rdb は nil でも構いません。
func Build(cfg *config.Config, manager *db.Manager, rdb *redisv9.Client, defaults store.Options) *Container {
	exec := store.NewExecutor(manager.DB())
	exec.SetDefaults(defaults)

	counter := stockadapters.NewStockCounter(exec)
	stocks := stockadapters.NewStockRepository(exec, counter)
	watchLists := watchlistadapters.NewWatchListRepository(exec, stocks, counter)
	props := propadapters.NewPropertyRepository(exec)

	// Redisキャッシュでラップ
	closePrices := cache.NewCachingClosePriceRepository(rdb, cfg.Redis.CacheTTL, stocks, "lastclose")

	agg := summaryusecase.NewAggregator(props, propadapters.LastTradeDate, stocks, stocks, stocks, cfg.Summary.BatchSize).
		WithCacheInvalidator(closePrices)

	return &Container{
		Config:      cfg,
		DB:          manager,
		Redis:       rdb,
		Exec:        exec,
		Counter:     counter,
		Stocks:      stocks,
		Comments:    commentadapters.NewCommentRepository(exec),
		WatchLists:  watchLists,
		Users:       useradapters.NewUserRepository(exec, watchLists),
		Properties:  props,
		ClosePrices: closePrices,
		Aggregator:  agg,
	}
}

// Close はRedisとクラスタへの接続を閉じます。
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close redis client")
		}
	}
	c.DB.Shutdown()
}

package adapters

import (
	"context"
	"math"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockwatcher/internal/platform/store"
)

// StockCounter maintains the per-symbol watch and view counters. Counter
// writes are relative and never part of a batch.
type StockCounter struct {
	exec *store.Executor
}

func NewStockCounter(exec *store.Executor) *StockCounter {
	return &StockCounter{exec: exec}
}

// IncrementWatchCount adds one to symbol's watch count.
func (c *StockCounter) IncrementWatchCount(ctx context.Context, symbol string, opts ...store.Option) error {
	return c.add(ctx, "stocks.IncrementWatchCount", symbol, "watch_count", 1, opts...)
}

// DecrementWatchCount subtracts one from each symbol's watch count. Every
// symbol is a separate write; the first failure stops the loop.
func (c *StockCounter) DecrementWatchCount(ctx context.Context, symbols []string, opts ...store.Option) error {
	for _, s := range symbols {
		if err := c.add(ctx, "stocks.DecrementWatchCount", s, "watch_count", -1, opts...); err != nil {
			return err
		}
	}
	return nil
}

// IncrementViewCount adds one to symbol's view count.
func (c *StockCounter) IncrementViewCount(ctx context.Context, symbol string, opts ...store.Option) error {
	return c.add(ctx, "stocks.IncrementViewCount", symbol, "view_count", 1, opts...)
}

// WatchCount returns symbol's watch count, 0 when no counter row exists.
func (c *StockCounter) WatchCount(ctx context.Context, symbol string, opts ...store.Option) (int32, error) {
	const op = "stocks.WatchCount"
	if strings.TrimSpace(symbol) == "" {
		return 0, store.Errorf(op, store.ErrInvalidArgument, "symbol is empty")
	}
	rows, err := store.Query(ctx, c.exec, op, func(tx *gorm.DB) ([]StockCountModel, error) {
		var rows []StockCountModel
		err := tx.Where("stock_symbol = ?", symbol).Limit(1).Find(&rows).Error
		return rows, err
	}, opts...)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n := rows[0].WatchCount
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, store.Errorf(op, store.ErrIllegalState, "watch count %d for %s overflows int32", n, symbol)
	}
	return int32(n), nil
}

func (c *StockCounter) positiveWatchCounts(ctx context.Context, opts ...store.Option) ([]StockCountModel, error) {
	return store.Query(ctx, c.exec, "stocks.WatchCounts", func(tx *gorm.DB) ([]StockCountModel, error) {
		var rows []StockCountModel
		err := tx.Where("watch_count > ?", 0).Find(&rows).Error
		return rows, err
	}, opts...)
}

// add seeds a zero row if none exists, then applies delta in place.
// The increment is not idempotent, so it is never re-sent once it may have
// reached the server.
func (c *StockCounter) add(ctx context.Context, op, symbol, column string, delta int64, opts ...store.Option) error {
	if strings.TrimSpace(symbol) == "" {
		return store.Errorf(op, store.ErrInvalidArgument, "symbol is empty")
	}
	opts = append(opts[:len(opts):len(opts)], store.WithIdempotent(false))
	return c.exec.Exec(ctx, op, func(tx *gorm.DB) error {
		seed := StockCountModel{StockSymbol: symbol}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		return tx.Model(&StockCountModel{}).
			Where("stock_symbol = ?", symbol).
			UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
	}, opts...)
}

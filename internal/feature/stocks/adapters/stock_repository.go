// Package adapters はstocksフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockwatcher/internal/feature/stocks/domain/entity"
	"stockwatcher/internal/platform/store"
)

// hydrateConcurrency は最も注目されている銘柄を取得する際の同時実行数の上限です。
const hydrateConcurrency = 16

// StockRepository は銘柄・取引・取引所・業種の読み書きを担当します。
type StockRepository struct {
	exec    *store.Executor
	counter *StockCounter
}

// NewStockRepository は指定されたExecutorでStockRepositoryを生成します。
func NewStockRepository(exec *store.Executor, counter *StockCounter) *StockRepository {
	return &StockRepository{exec: exec, counter: counter}
}

// GetBySymbol は銘柄コードで1件取得します。存在しない場合はErrNotFoundを返します。
func (r *StockRepository) GetBySymbol(ctx context.Context, symbol string, opts ...store.Option) (entity.Stock, error) {
	const op = "stocks.GetBySymbol"
	if strings.TrimSpace(symbol) == "" {
		return entity.Stock{}, store.Errorf(op, store.ErrInvalidArgument, "symbol is empty")
	}
	return store.Query(ctx, r.exec, op, func(tx *gorm.DB) (entity.Stock, error) {
		var m StockModel
		if err := tx.Where("symbol = ?", symbol).Take(&m).Error; err != nil {
			return entity.Stock{}, err
		}
		return toStock(m), nil
	}, opts...)
}

// GetIndustries はすべての業種をID順に返します。
func (r *StockRepository) GetIndustries(ctx context.Context, opts ...store.Option) ([]entity.Industry, error) {
	const op = "stocks.GetIndustries"
	rows, err := store.Query(ctx, r.exec, op, func(tx *gorm.DB) ([]IndustryModel, error) {
		var rows []IndustryModel
		err := tx.Order("id ASC").Find(&rows).Error
		return rows, err
	}, opts...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.Errorf(op, store.ErrNotFound, "no industries")
	}
	out := make([]entity.Industry, 0, len(rows))
	for _, m := range rows {
		out = append(out, toIndustry(m))
	}
	return out, nil
}

// GetExchanges は有効な取引所をID順に返します。
func (r *StockRepository) GetExchanges(ctx context.Context, opts ...store.Option) ([]entity.Exchange, error) {
	const op = "stocks.GetExchanges"
	rows, err := store.Query(ctx, r.exec, op, func(tx *gorm.DB) ([]ExchangeModel, error) {
		var rows []ExchangeModel
		err := tx.Where("active = ?", true).Order("id ASC").Find(&rows).Error
		return rows, err
	}, opts...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.Errorf(op, store.ErrNotFound, "no active exchanges")
	}
	out := make([]entity.Exchange, 0, len(rows))
	for _, m := range rows {
		out = append(out, toExchange(m))
	}
	return out, nil
}

// FindStocks は条件に一致する有効な銘柄を銘柄コード順に返します。
// 業種で検索インデックスを引き、取引所と価格帯はクライアント側で絞り込みます。
func (r *StockRepository) FindStocks(ctx context.Context, c entity.StockCriteria, opts ...store.Option) ([]entity.Stock, error) {
	const op = "stocks.FindStocks"
	if len(c.ExchangeIDs) == 0 {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "no exchange ids")
	}
	if len(c.IndustryIDs) == 0 {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "no industry ids")
	}
	if c.MaxPrice.Valid && c.MaxPrice.Decimal.LessThan(c.MinPrice) {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "max price %s below min price %s", c.MaxPrice.Decimal, c.MinPrice)
	}

	index, err := store.Query(ctx, r.exec, op+".index", func(tx *gorm.DB) ([]StockSearchModel, error) {
		var rows []StockSearchModel
		err := tx.Where("industry_id IN ?", c.IndustryIDs).Find(&rows).Error
		return rows, err
	}, opts...)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(index))
	symbols := make([]string, 0, len(index))
	for _, row := range index {
		if !c.HasExchange(row.ExchangeID) {
			continue
		}
		if _, ok := seen[row.StockSymbol]; ok {
			continue
		}
		seen[row.StockSymbol] = struct{}{}
		symbols = append(symbols, row.StockSymbol)
	}
	if len(symbols) == 0 {
		return []entity.Stock{}, nil
	}

	stocks, err := r.activeStocks(ctx, op, symbols, opts...)
	if err != nil {
		return nil, err
	}
	out := stocks[:0]
	for _, s := range stocks {
		if !s.CurrentPrice.Valid || !c.PriceInRange(s.CurrentPrice.Decimal) {
			continue
		}
		// 索引行が古い場合に備えて本体の行で再確認する
		if !c.HasExchange(s.ExchangeID) || !c.HasIndustry(s.Industry.ID) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// GetCurrentPriceForSymbols は指定された銘柄のうち有効なものを返します。
// 存在しない銘柄は結果から除外され、エラーにはなりません。
func (r *StockRepository) GetCurrentPriceForSymbols(ctx context.Context, symbols []string, opts ...store.Option) ([]entity.Stock, error) {
	const op = "stocks.GetCurrentPriceForSymbols"
	if len(symbols) == 0 {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "no symbols")
	}
	return r.activeStocks(ctx, op, symbols, opts...)
}

func (r *StockRepository) activeStocks(ctx context.Context, op string, symbols []string, opts ...store.Option) ([]entity.Stock, error) {
	rows, err := store.Query(ctx, r.exec, op, func(tx *gorm.DB) ([]StockModel, error) {
		var rows []StockModel
		err := tx.Where("symbol IN ? AND active = ?", symbols, true).Order("symbol ASC").Find(&rows).Error
		return rows, err
	}, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Stock, 0, len(rows))
	for _, m := range rows {
		out = append(out, toStock(m))
	}
	return out, nil
}

// GetMostWatchedStocks はウォッチ数の多い順に最大limit件の銘柄を返します。
// 同数の場合は銘柄コード順です。カウンタ表を全件読んで順位を固定した後、
// 各銘柄を並行して取得します。
func (r *StockRepository) GetMostWatchedStocks(ctx context.Context, limit int, opts ...store.Option) ([]entity.Stock, error) {
	const op = "stocks.GetMostWatchedStocks"
	if limit <= 0 {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "limit must be positive, got %d", limit)
	}

	counts, err := r.counter.positiveWatchCounts(ctx, opts...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].WatchCount != counts[j].WatchCount {
			return counts[i].WatchCount > counts[j].WatchCount
		}
		return counts[i].StockSymbol < counts[j].StockSymbol
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}

	slots := make([]*entity.Stock, len(counts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateConcurrency)
	for i, c := range counts {
		g.Go(func() error {
			s, err := r.GetBySymbol(gctx, c.StockSymbol, opts...)
			if errors.Is(err, store.ErrNotFound) {
				// counter rows can outlive their stock
				return nil
			}
			if err != nil {
				return err
			}
			slots[i] = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]entity.Stock, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

// IncrementStockViewCount は閲覧数を1加算します。
func (r *StockRepository) IncrementStockViewCount(ctx context.Context, symbol string, opts ...store.Option) error {
	return r.counter.IncrementViewCount(ctx, symbol, opts...)
}

// GetTradesBySymbolAndDate は指定日の取引を時刻順に返します。
func (r *StockRepository) GetTradesBySymbolAndDate(ctx context.Context, symbol string, date time.Time, opts ...store.Option) ([]entity.Trade, error) {
	return r.TradesBySymbolAndDateAsync(ctx, symbol, date, opts...).Get(ctx)
}

// TradesBySymbolAndDateAsync は取引の読み出しを非同期に発行します。
func (r *StockRepository) TradesBySymbolAndDateAsync(ctx context.Context, symbol string, date time.Time, opts ...store.Option) *store.Future[[]entity.Trade] {
	const op = "stocks.GetTradesBySymbolAndDate"
	if strings.TrimSpace(symbol) == "" {
		return store.Completed[[]entity.Trade](nil, store.Errorf(op, store.ErrInvalidArgument, "symbol is empty"))
	}
	day := entity.TradeDate(date)
	return store.Async(ctx, r.exec, op, func(tx *gorm.DB) ([]entity.Trade, error) {
		var rows []TradeModel
		if err := tx.Where("stock_symbol = ? AND trade_date = ?", symbol, day).
			Order("trade_timestamp ASC").Order("trade_id ASC").
			Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]entity.Trade, 0, len(rows))
		for _, m := range rows {
			out = append(out, toTrade(m))
		}
		return out, nil
	}, opts...)
}

// GetLastClosePriceForSymbol は直近の日次サマリーの終値を返します。
func (r *StockRepository) GetLastClosePriceForSymbol(ctx context.Context, symbol string, opts ...store.Option) (decimal.Decimal, error) {
	const op = "stocks.GetLastClosePriceForSymbol"
	if strings.TrimSpace(symbol) == "" {
		return decimal.Zero, store.Errorf(op, store.ErrInvalidArgument, "symbol is empty")
	}
	return store.Query(ctx, r.exec, op, func(tx *gorm.DB) (decimal.Decimal, error) {
		var m DailySummaryModel
		if err := tx.Where("stock_symbol = ?", symbol).Order("trade_date DESC").Take(&m).Error; err != nil {
			return decimal.Zero, err
		}
		return m.PriceClose, nil
	}, opts...)
}

// GetDailySummary は銘柄と取引日で日次サマリーを1件取得します。
func (r *StockRepository) GetDailySummary(ctx context.Context, symbol string, date time.Time, opts ...store.Option) (entity.DailySummary, error) {
	const op = "stocks.GetDailySummary"
	day := entity.TradeDate(date)
	return store.Query(ctx, r.exec, op, func(tx *gorm.DB) (entity.DailySummary, error) {
		var m DailySummaryModel
		if err := tx.Where("stock_symbol = ? AND trade_date = ?", symbol, day).Take(&m).Error; err != nil {
			return entity.DailySummary{}, err
		}
		return toDailySummary(m), nil
	}, opts...)
}

// UpsertDailySummaryAsync は日次サマリーを非同期に書き込みます。
// 同じ(銘柄, 取引日)への再実行は同じ行を上書きします。
func (r *StockRepository) UpsertDailySummaryAsync(ctx context.Context, s entity.DailySummary, opts ...store.Option) *store.Future[struct{}] {
	const op = "stocks.UpsertDailySummary"
	if s.Symbol == "" {
		return store.Completed(struct{}{}, store.Errorf(op, store.ErrInvalidArgument, "symbol is empty"))
	}
	m := toDailySummaryModel(s)
	return store.Async(ctx, r.exec, op, func(tx *gorm.DB) (struct{}, error) {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stock_symbol"}, {Name: "trade_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"price_open", "price_high", "price_low", "price_close", "volume"}),
		}).Create(&m).Error
		return struct{}{}, err
	}, opts...)
}

// ListActiveSymbols は有効な銘柄コードをすべて返します。
func (r *StockRepository) ListActiveSymbols(ctx context.Context, opts ...store.Option) ([]string, error) {
	return store.Query(ctx, r.exec, "stocks.ListActiveSymbols", func(tx *gorm.DB) ([]string, error) {
		var symbols []string
		err := tx.Model(&StockModel{}).
			Where("active = ?", true).
			Order("symbol ASC").
			Pluck("symbol", &symbols).Error
		return symbols, err
	}, opts...)
}

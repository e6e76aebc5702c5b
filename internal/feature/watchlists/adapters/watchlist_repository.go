// Package adapters はwatchlistsフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	stockentity "stockwatcher/internal/feature/stocks/domain/entity"
	"stockwatcher/internal/feature/watchlists/domain"
	"stockwatcher/internal/feature/watchlists/domain/entity"
	"stockwatcher/internal/platform/logging"
	"stockwatcher/internal/platform/store"
)

// StockLookup は追加時の価格スナップショットと明細の補完に使う銘柄参照です。
type StockLookup interface {
	GetBySymbol(ctx context.Context, symbol string, opts ...store.Option) (stockentity.Stock, error)
}

// WatchCounter は銘柄ごとのウォッチ数を更新します。
type WatchCounter interface {
	IncrementWatchCount(ctx context.Context, symbol string, opts ...store.Option) error
	DecrementWatchCount(ctx context.Context, symbols []string, opts ...store.Option) error
	WatchCount(ctx context.Context, symbol string, opts ...store.Option) (int32, error)
}

type WatchListModel struct {
	WatchListID uuid.UUID `gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index"`
	DisplayName string    `gorm:"size:255;not null"`
	Visibility  string    `gorm:"size:16;not null"`
	Active      bool      `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (WatchListModel) TableName() string {
	return "watch_lists"
}

type WatchListItemModel struct {
	WatchListID uuid.UUID           `gorm:"primaryKey;type:uuid"`
	StockSymbol string              `gorm:"primaryKey;size:16"`
	CreatedAt   time.Time           `gorm:"not null;autoCreateTime:false"`
	StartPrice  decimal.NullDecimal `gorm:"type:numeric(14,4)"`
}

func (WatchListItemModel) TableName() string {
	return "watch_list_items"
}

// Models lists the watch list tables for migration.
func Models() []interface{} {
	return []interface{}{&WatchListModel{}, &WatchListItemModel{}}
}

func toWatchList(m WatchListModel, items int) entity.WatchList {
	return entity.WatchList{
		ID:          m.WatchListID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Visibility:  entity.Visibility(m.Visibility),
		Active:      m.Active,
		Created:     store.TimeOf(m.WatchListID),
		Updated:     m.UpdatedAt.UTC(),
		ItemCount:   items,
	}
}

func toItem(m WatchListItemModel) entity.Item {
	return entity.Item{
		WatchListID: m.WatchListID,
		Symbol:      m.StockSymbol,
		Created:     m.CreatedAt.UTC(),
		StartPrice:  m.StartPrice,
	}
}

// WatchListRepository はウォッチリストと明細を管理します。
// 明細の追加・削除に合わせて銘柄のウォッチ数も更新しますが、
// カウンタの更新は明細の書き込みとは別操作です。
type WatchListRepository struct {
	exec    *store.Executor
	stocks  StockLookup
	counter WatchCounter
	now     func() time.Time
}

func NewWatchListRepository(exec *store.Executor, stocks StockLookup, counter WatchCounter) *WatchListRepository {
	return &WatchListRepository{
		exec:    exec,
		stocks:  stocks,
		counter: counter,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Insert は新しいIDを割り当ててウォッチリストを作成します。
func (r *WatchListRepository) Insert(ctx context.Context, wl entity.WatchList, opts ...store.Option) (entity.WatchList, error) {
	const op = "watchlists.Insert"
	if wl.UserID == uuid.Nil {
		return entity.WatchList{}, store.Errorf(op, store.ErrInvalidArgument, "user id is empty")
	}
	if strings.TrimSpace(wl.DisplayName) == "" {
		return entity.WatchList{}, store.Errorf(op, store.ErrInvalidArgument, "display name is empty")
	}
	if wl.Visibility == "" {
		wl.Visibility = entity.VisibilityPrivate
	}
	if !wl.Visibility.Valid() {
		return entity.WatchList{}, domain.ErrInvalidVisibility
	}

	id, err := store.NewTimeID()
	if err != nil {
		return entity.WatchList{}, err
	}
	wl.ID = id
	wl.Created = store.TimeOf(id)
	wl.Updated = wl.Created
	wl.Active = true
	wl.ItemCount = 0

	m := WatchListModel{
		WatchListID: wl.ID,
		UserID:      wl.UserID,
		DisplayName: wl.DisplayName,
		Visibility:  string(wl.Visibility),
		Active:      true,
		UpdatedAt:   wl.Updated,
	}
	if err := r.exec.Exec(ctx, op, func(tx *gorm.DB) error {
		return tx.Create(&m).Error
	}, opts...); err != nil {
		return entity.WatchList{}, err
	}
	return wl, nil
}

// Update は表示名・公開範囲・有効フラグを書き換えて更新日時を進めます。
func (r *WatchListRepository) Update(ctx context.Context, wl entity.WatchList, opts ...store.Option) (entity.WatchList, error) {
	const op = "watchlists.Update"
	if wl.ID == uuid.Nil {
		return entity.WatchList{}, store.Errorf(op, store.ErrInvalidArgument, "watch list id is empty")
	}
	if strings.TrimSpace(wl.DisplayName) == "" {
		return entity.WatchList{}, store.Errorf(op, store.ErrInvalidArgument, "display name is empty")
	}
	if !wl.Visibility.Valid() {
		return entity.WatchList{}, domain.ErrInvalidVisibility
	}

	err := r.exec.Exec(ctx, op, func(tx *gorm.DB) error {
		res := tx.Model(&WatchListModel{}).
			Where("watch_list_id = ?", wl.ID).
			Updates(map[string]interface{}{
				"display_name": wl.DisplayName,
				"visibility":   string(wl.Visibility),
				"active":       wl.Active,
				"updated_at":   r.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.Errorf(op, store.ErrNotFound, "watch list %s", wl.ID)
		}
		return nil
	}, opts...)
	if err != nil {
		return entity.WatchList{}, err
	}
	return r.Get(ctx, wl.ID, opts...)
}

// Delete はウォッチリストと全明細を一括削除し、その後で各銘柄のウォッチ数を減らします。
func (r *WatchListRepository) Delete(ctx context.Context, id uuid.UUID, opts ...store.Option) error {
	const op = "watchlists.Delete"
	if id == uuid.Nil {
		return store.Errorf(op, store.ErrInvalidArgument, "watch list id is empty")
	}

	// 削除後は明細を引けなくなるため先に銘柄を読む
	symbols, err := r.Symbols(ctx, id, opts...)
	if err != nil {
		return err
	}

	err = r.exec.Batch(ctx, op, func(tx *gorm.DB) error {
		if err := tx.Where("watch_list_id = ?", id).Delete(&WatchListItemModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("watch_list_id = ?", id).Delete(&WatchListModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.Errorf(op, store.ErrNotFound, "watch list %s", id)
		}
		return nil
	}, opts...)
	if err != nil {
		return err
	}

	if len(symbols) == 0 {
		return nil
	}
	if err := r.counter.DecrementWatchCount(ctx, symbols, opts...); err != nil {
		logging.Warn().Err(err).Str("watch_list_id", id.String()).Msg("watch counts not decremented after delete")
		return err
	}
	return nil
}

// Get はアイテム数付きでウォッチリストを1件取得します。
func (r *WatchListRepository) Get(ctx context.Context, id uuid.UUID, opts ...store.Option) (entity.WatchList, error) {
	const op = "watchlists.Get"
	if id == uuid.Nil {
		return entity.WatchList{}, store.Errorf(op, store.ErrInvalidArgument, "watch list id is empty")
	}
	return store.Query(ctx, r.exec, op, func(tx *gorm.DB) (entity.WatchList, error) {
		var m WatchListModel
		if err := tx.Where("watch_list_id = ?", id).Take(&m).Error; err != nil {
			return entity.WatchList{}, err
		}
		var n int64
		if err := tx.Model(&WatchListItemModel{}).Where("watch_list_id = ?", id).Count(&n).Error; err != nil {
			return entity.WatchList{}, err
		}
		return toWatchList(m, int(n)), nil
	}, opts...)
}

type itemCount struct {
	WatchListID uuid.UUID
	N           int
}

// ListByUser はユーザーのウォッチリストを作成順に返します。
func (r *WatchListRepository) ListByUser(ctx context.Context, userID uuid.UUID, opts ...store.Option) ([]entity.WatchList, error) {
	const op = "watchlists.ListByUser"
	if userID == uuid.Nil {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "user id is empty")
	}
	lists, err := store.Query(ctx, r.exec, op, func(tx *gorm.DB) ([]entity.WatchList, error) {
		var rows []WatchListModel
		if err := tx.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return []entity.WatchList{}, nil
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, m := range rows {
			ids = append(ids, m.WatchListID)
		}
		var counts []itemCount
		if err := tx.Model(&WatchListItemModel{}).
			Select("watch_list_id, COUNT(*) AS n").
			Where("watch_list_id IN ?", ids).
			Group("watch_list_id").
			Scan(&counts).Error; err != nil {
			return nil, err
		}
		byID := make(map[uuid.UUID]int, len(counts))
		for _, c := range counts {
			byID[c.WatchListID] = c.N
		}
		out := make([]entity.WatchList, 0, len(rows))
		for _, m := range rows {
			out = append(out, toWatchList(m, byID[m.WatchListID]))
		}
		return out, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	sort.Slice(lists, func(i, j int) bool {
		return lists[i].Created.Before(lists[j].Created)
	})
	return lists, nil
}

// CountByUser はユーザーが所有するウォッチリストの数を返します。
func (r *WatchListRepository) CountByUser(ctx context.Context, userID uuid.UUID, opts ...store.Option) (int, error) {
	n, err := store.Query(ctx, r.exec, "watchlists.CountByUser", func(tx *gorm.DB) (int64, error) {
		var n int64
		err := tx.Model(&WatchListModel{}).Where("user_id = ?", userID).Count(&n).Error
		return n, err
	}, opts...)
	return int(n), err
}

// Symbols はウォッチリストに含まれる銘柄コードを昇順で返します。
func (r *WatchListRepository) Symbols(ctx context.Context, id uuid.UUID, opts ...store.Option) ([]string, error) {
	return store.Query(ctx, r.exec, "watchlists.Symbols", func(tx *gorm.DB) ([]string, error) {
		var symbols []string
		err := tx.Model(&WatchListItemModel{}).
			Where("watch_list_id = ?", id).
			Order("stock_symbol ASC").
			Pluck("stock_symbol", &symbols).Error
		return symbols, err
	}, opts...)
}

// Items は明細を銘柄コード順に返し、各明細に現在の銘柄情報を補完します。
func (r *WatchListRepository) Items(ctx context.Context, id uuid.UUID, opts ...store.Option) ([]entity.Item, error) {
	rows, err := store.Query(ctx, r.exec, "watchlists.Items", func(tx *gorm.DB) ([]WatchListItemModel, error) {
		var rows []WatchListItemModel
		err := tx.Where("watch_list_id = ?", id).Order("stock_symbol ASC").Find(&rows).Error
		return rows, err
	}, opts...)
	if err != nil {
		return nil, err
	}

	out := make([]entity.Item, 0, len(rows))
	for _, m := range rows {
		item := toItem(m)
		s, err := r.stocks.GetBySymbol(ctx, m.StockSymbol, opts...)
		switch {
		case err == nil:
			item.Stock = &s
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// AddStock は(ウォッチリスト, 銘柄)の組が未登録の場合のみ明細を挿入します。
// 挿入が適用された場合に限りウォッチ数を加算するので、再試行しても二重計上されません。
func (r *WatchListRepository) AddStock(ctx context.Context, id uuid.UUID, symbol string, opts ...store.Option) (entity.AddResult, error) {
	const op = "watchlists.AddStock"
	if id == uuid.Nil {
		return entity.AddResult{}, store.Errorf(op, store.ErrInvalidArgument, "watch list id is empty")
	}
	if strings.TrimSpace(symbol) == "" {
		return entity.AddResult{}, store.Errorf(op, store.ErrInvalidArgument, "symbol is empty")
	}
	if _, err := r.Get(ctx, id, opts...); err != nil {
		return entity.AddResult{}, err
	}
	stock, err := r.stocks.GetBySymbol(ctx, symbol, opts...)
	if err != nil {
		return entity.AddResult{}, err
	}

	m := WatchListItemModel{
		WatchListID: id,
		StockSymbol: stock.Symbol,
		CreatedAt:   r.now(),
		StartPrice:  stock.CurrentPrice,
	}
	// 再送すると RowsAffected=0 となり、適用済みでも AlreadyExists に見えるため再試行しない
	casOpts := append(opts[:len(opts):len(opts)], store.WithIdempotent(false))
	applied, err := store.Query(ctx, r.exec, op, func(tx *gorm.DB) (bool, error) {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
		return res.RowsAffected == 1, res.Error
	}, casOpts...)
	if err != nil {
		if !r.appliedDespite(ctx, err, m, opts...) {
			return entity.AddResult{}, err
		}
		applied = true
	}

	if !applied {
		existing, err := r.item(ctx, id, stock.Symbol, opts...)
		if err != nil {
			return entity.AddResult{}, err
		}
		return entity.AddResult{Outcome: entity.AlreadyExists, Item: existing}, nil
	}

	item := toItem(m)
	item.Stock = &stock
	if err := r.counter.IncrementWatchCount(ctx, stock.Symbol, opts...); err != nil {
		logging.Warn().Err(err).Str("symbol", stock.Symbol).Msg("watch count not incremented after add")
		return entity.AddResult{Outcome: entity.Applied, Item: item}, err
	}
	return entity.AddResult{Outcome: entity.Applied, Item: item}, nil
}

// appliedDespite は応答が失われた挿入について、自身の書き込みが残っているかを読み戻して判定します。
// 作成時刻が一致する明細は、この呼び出しが挿入したものです。
func (r *WatchListRepository) appliedDespite(ctx context.Context, err error, m WatchListItemModel, opts ...store.Option) bool {
	if !errors.Is(err, store.ErrStoreUnavailable) && !errors.Is(err, store.ErrTimeout) {
		return false
	}
	if store.NotSent(err) || ctx.Err() != nil {
		return false
	}
	existing, rerr := r.item(ctx, m.WatchListID, m.StockSymbol, opts...)
	if rerr != nil {
		return false
	}
	if !existing.Created.Equal(m.CreatedAt) {
		return false
	}
	logging.Warn().Err(err).Str("symbol", m.StockSymbol).Msg("add reply lost; item found on read-back")
	return true
}

// RemoveStock は明細の存在を確認してから削除し、ウォッチ数を1減らします。
func (r *WatchListRepository) RemoveStock(ctx context.Context, id uuid.UUID, symbol string, opts ...store.Option) error {
	const op = "watchlists.RemoveStock"
	if id == uuid.Nil || strings.TrimSpace(symbol) == "" {
		return store.Errorf(op, store.ErrInvalidArgument, "watch list id and symbol are required")
	}

	if _, err := r.item(ctx, id, symbol, opts...); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrNotOnList
		}
		return err
	}

	if err := r.exec.Exec(ctx, op, func(tx *gorm.DB) error {
		return tx.Where("watch_list_id = ? AND stock_symbol = ?", id, symbol).Delete(&WatchListItemModel{}).Error
	}, opts...); err != nil {
		return err
	}
	return r.counter.DecrementWatchCount(ctx, []string{symbol}, opts...)
}

// WatchCount は銘柄のウォッチ数を返します。
func (r *WatchListRepository) WatchCount(ctx context.Context, symbol string, opts ...store.Option) (int32, error) {
	return r.counter.WatchCount(ctx, symbol, opts...)
}

func (r *WatchListRepository) item(ctx context.Context, id uuid.UUID, symbol string, opts ...store.Option) (entity.Item, error) {
	return store.Query(ctx, r.exec, "watchlists.Item", func(tx *gorm.DB) (entity.Item, error) {
		var m WatchListItemModel
		if err := tx.Where("watch_list_id = ? AND stock_symbol = ?", id, symbol).Take(&m).Error; err != nil {
			return entity.Item{}, err
		}
		return toItem(m), nil
	}, opts...)
}

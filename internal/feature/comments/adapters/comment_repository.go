// Package adapters stores comments in two indexes, one keyed by stock symbol
// and one keyed by author. Both are written in the same batch.
package adapters

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stockwatcher/internal/feature/comments/domain/entity"
	"stockwatcher/internal/platform/store"
)

type CommentBySymbolModel struct {
	StockSymbol     string    `gorm:"primaryKey;size:16"`
	CommentID       uuid.UUID `gorm:"primaryKey;type:uuid"`
	UserID          uuid.UUID `gorm:"type:uuid;not null"`
	UserDisplayName string    `gorm:"size:255;not null"`
	CommentText     string    `gorm:"type:text;not null"`
	Active          bool      `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime:false"`
}

func (CommentBySymbolModel) TableName() string {
	return "comments_by_symbol"
}

type CommentByUserModel struct {
	UserID          uuid.UUID `gorm:"primaryKey;type:uuid"`
	CommentID       uuid.UUID `gorm:"primaryKey;type:uuid"`
	StockSymbol     string    `gorm:"size:16;not null"`
	UserDisplayName string    `gorm:"size:255;not null"`
	CommentText     string    `gorm:"type:text;not null"`
	Active          bool      `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime:false"`
}

func (CommentByUserModel) TableName() string {
	return "comments_by_user"
}

// Models lists the comment tables for migration.
func Models() []interface{} {
	return []interface{}{&CommentBySymbolModel{}, &CommentByUserModel{}}
}

func fromBySymbol(m CommentBySymbolModel) entity.Comment {
	return entity.Comment{
		ID:              m.CommentID,
		Symbol:          m.StockSymbol,
		UserID:          m.UserID,
		UserDisplayName: m.UserDisplayName,
		Text:            m.CommentText,
		Active:          m.Active,
		Created:         store.TimeOf(m.CommentID),
	}
}

func fromByUser(m CommentByUserModel) entity.Comment {
	return entity.Comment{
		ID:              m.CommentID,
		Symbol:          m.StockSymbol,
		UserID:          m.UserID,
		UserDisplayName: m.UserDisplayName,
		Text:            m.CommentText,
		Active:          m.Active,
		Created:         store.TimeOf(m.CommentID),
	}
}

type CommentRepository struct {
	exec *store.Executor
}

func NewCommentRepository(exec *store.Executor) *CommentRepository {
	return &CommentRepository{exec: exec}
}

// Insert assigns a new id to c and writes it to both indexes atomically.
// The stored comment is returned.
func (r *CommentRepository) Insert(ctx context.Context, c entity.Comment, opts ...store.Option) (entity.Comment, error) {
	const op = "comments.Insert"
	switch {
	case strings.TrimSpace(c.Symbol) == "":
		return entity.Comment{}, store.Errorf(op, store.ErrInvalidArgument, "symbol is empty")
	case c.UserID == uuid.Nil:
		return entity.Comment{}, store.Errorf(op, store.ErrInvalidArgument, "user id is empty")
	case strings.TrimSpace(c.Text) == "":
		return entity.Comment{}, store.Errorf(op, store.ErrInvalidArgument, "comment text is empty")
	}

	id, err := store.NewTimeID()
	if err != nil {
		return entity.Comment{}, err
	}
	c.ID = id
	c.Created = store.TimeOf(id)
	c.Active = true

	bySymbol := CommentBySymbolModel{
		StockSymbol:     c.Symbol,
		CommentID:       c.ID,
		UserID:          c.UserID,
		UserDisplayName: c.UserDisplayName,
		CommentText:     c.Text,
		Active:          true,
		CreatedAt:       c.Created,
	}
	byUser := CommentByUserModel{
		UserID:          c.UserID,
		CommentID:       c.ID,
		StockSymbol:     c.Symbol,
		UserDisplayName: c.UserDisplayName,
		CommentText:     c.Text,
		Active:          true,
		CreatedAt:       c.Created,
	}
	err = r.exec.Batch(ctx, op, func(tx *gorm.DB) error {
		if err := tx.Create(&bySymbol).Error; err != nil {
			return err
		}
		return tx.Create(&byUser).Error
	}, opts...)
	if err != nil {
		return entity.Comment{}, err
	}
	return c, nil
}

// Delete soft-deletes c in both indexes. c must carry the symbol, user id
// and comment id. Deleting an already inactive comment succeeds.
func (r *CommentRepository) Delete(ctx context.Context, c entity.Comment, opts ...store.Option) error {
	const op = "comments.Delete"
	if strings.TrimSpace(c.Symbol) == "" || c.UserID == uuid.Nil || c.ID == uuid.Nil {
		return store.Errorf(op, store.ErrInvalidArgument, "comment key is incomplete")
	}

	return r.exec.Batch(ctx, op, func(tx *gorm.DB) error {
		res := tx.Model(&CommentBySymbolModel{}).
			Where("stock_symbol = ? AND comment_id = ?", c.Symbol, c.ID).
			Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.Errorf(op, store.ErrNotFound, "comment %s on %s", c.ID, c.Symbol)
		}
		res = tx.Model(&CommentByUserModel{}).
			Where("user_id = ? AND comment_id = ?", c.UserID, c.ID).
			Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		// 片方の索引だけを無効化したまま確定させない
		if res.RowsAffected == 0 {
			return store.Errorf(op, store.ErrNotFound, "comment %s by user %s", c.ID, c.UserID)
		}
		return nil
	}, opts...)
}

// BySymbol returns up to limit active comments on symbol, newest first.
// The limit applies after inactive comments are dropped.
func (r *CommentRepository) BySymbol(ctx context.Context, symbol string, limit int, opts ...store.Option) ([]entity.Comment, error) {
	const op = "comments.BySymbol"
	if strings.TrimSpace(symbol) == "" {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "symbol is empty")
	}
	if limit <= 0 {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "limit must be positive, got %d", limit)
	}

	rows, err := store.Query(ctx, r.exec, op, func(tx *gorm.DB) ([]CommentBySymbolModel, error) {
		var rows []CommentBySymbolModel
		err := tx.Where("stock_symbol = ?", symbol).
			Order("created_at DESC").Order("comment_id DESC").
			Find(&rows).Error
		return rows, err
	}, opts...)
	if err != nil {
		return nil, err
	}

	out := make([]entity.Comment, 0, min(limit, len(rows)))
	for _, m := range rows {
		if !m.Active {
			continue
		}
		out = append(out, fromBySymbol(m))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ByUser returns up to limit active comments written by userID, newest first.
func (r *CommentRepository) ByUser(ctx context.Context, userID uuid.UUID, limit int, opts ...store.Option) ([]entity.Comment, error) {
	const op = "comments.ByUser"
	if userID == uuid.Nil {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "user id is empty")
	}
	if limit <= 0 {
		return nil, store.Errorf(op, store.ErrInvalidArgument, "limit must be positive, got %d", limit)
	}

	rows, err := store.Query(ctx, r.exec, op, func(tx *gorm.DB) ([]CommentByUserModel, error) {
		var rows []CommentByUserModel
		err := tx.Where("user_id = ?", userID).
			Order("created_at DESC").Order("comment_id DESC").
			Find(&rows).Error
		return rows, err
	}, opts...)
	if err != nil {
		return nil, err
	}

	out := make([]entity.Comment, 0, min(limit, len(rows)))
	for _, m := range rows {
		if !m.Active {
			continue
		}
		out = append(out, fromByUser(m))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

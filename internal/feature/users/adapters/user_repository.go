package adapters

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stockwatcher/internal/feature/users/domain/entity"
	"stockwatcher/internal/platform/store"
)

// WatchListCounter counts the watch lists a user owns.
type WatchListCounter interface {
	CountByUser(ctx context.Context, userID uuid.UUID, opts ...store.Option) (int, error)
}

type UserModel struct {
	UserID      uuid.UUID `gorm:"primaryKey;type:uuid"`
	FirstName   string    `gorm:"size:255"`
	LastName    string    `gorm:"size:255"`
	DisplayName string    `gorm:"size:255;not null"`
	Email       string    `gorm:"size:255;not null;uniqueIndex"`
	PostalCode  string    `gorm:"size:16"`
	Active      bool      `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (UserModel) TableName() string {
	return "users"
}

// Models lists the user tables for migration.
func Models() []interface{} {
	return []interface{}{&UserModel{}}
}

func toUser(m UserModel, lists int) entity.User {
	return entity.User{
		ID:             m.UserID,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		DisplayName:    m.DisplayName,
		Email:          m.Email,
		PostalCode:     m.PostalCode,
		Active:         m.Active,
		Updated:        m.UpdatedAt.UTC(),
		WatchListCount: lists,
	}
}

// ToUserModel maps a User onto its row. Seeding and tests use it.
func ToUserModel(u entity.User) UserModel {
	return UserModel{
		UserID:      u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PostalCode:  u.PostalCode,
		Active:      u.Active,
		UpdatedAt:   u.Updated.UTC(),
	}
}

type UserRepository struct {
	exec       *store.Executor
	watchLists WatchListCounter
	now        func() time.Time
}

func NewUserRepository(exec *store.Executor, watchLists WatchListCounter) *UserRepository {
	return &UserRepository{
		exec:       exec,
		watchLists: watchLists,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns every user ordered by display name, each with its watch list count.
func (r *UserRepository) List(ctx context.Context, opts ...store.Option) ([]entity.User, error) {
	rows, err := store.Query(ctx, r.exec, "users.List", func(tx *gorm.DB) ([]UserModel, error) {
		var rows []UserModel
		err := tx.Order("display_name ASC").Order("user_id ASC").Find(&rows).Error
		return rows, err
	}, opts...)
	if err != nil {
		return nil, err
	}

	out := make([]entity.User, 0, len(rows))
	for _, m := range rows {
		n, err := r.watchLists.CountByUser(ctx, m.UserID, opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, toUser(m, n))
	}
	return out, nil
}

// Get returns one user with its watch list count.
func (r *UserRepository) Get(ctx context.Context, id uuid.UUID, opts ...store.Option) (entity.User, error) {
	const op = "users.Get"
	if id == uuid.Nil {
		return entity.User{}, store.Errorf(op, store.ErrInvalidArgument, "user id is empty")
	}
	m, err := store.Query(ctx, r.exec, op, func(tx *gorm.DB) (UserModel, error) {
		var m UserModel
		err := tx.Where("user_id = ?", id).Take(&m).Error
		return m, err
	}, opts...)
	if err != nil {
		return entity.User{}, err
	}
	n, err := r.watchLists.CountByUser(ctx, id, opts...)
	if err != nil {
		return entity.User{}, err
	}
	return toUser(m, n), nil
}

// Update rewrites the profile fields and refreshes the updated time.
func (r *UserRepository) Update(ctx context.Context, u entity.User, opts ...store.Option) (entity.User, error) {
	const op = "users.Update"
	if u.ID == uuid.Nil {
		return entity.User{}, store.Errorf(op, store.ErrInvalidArgument, "user id is empty")
	}
	if strings.TrimSpace(u.DisplayName) == "" || strings.TrimSpace(u.Email) == "" {
		return entity.User{}, store.Errorf(op, store.ErrInvalidArgument, "display name and email are required")
	}

	err := r.exec.Exec(ctx, op, func(tx *gorm.DB) error {
		res := tx.Model(&UserModel{}).
			Where("user_id = ?", u.ID).
			Updates(map[string]interface{}{
				"first_name":   u.FirstName,
				"last_name":    u.LastName,
				"display_name": u.DisplayName,
				"email":        u.Email,
				"postal_code":  u.PostalCode,
				"updated_at":   r.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.Errorf(op, store.ErrNotFound, "user %s", u.ID)
		}
		return nil
	}, opts...)
	if err != nil {
		return entity.User{}, err
	}
	return r.Get(ctx, u.ID, opts...)
}

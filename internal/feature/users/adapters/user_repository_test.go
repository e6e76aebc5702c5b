package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stockwatcher/internal/feature/users/domain/entity"
	"stockwatcher/internal/platform/store"
)

// mockWatchListCounter is a mock implementation of WatchListCounter.
type mockWatchListCounter struct {
	CountByUserFunc func(userID uuid.UUID) (int, error)
}

func (m *mockWatchListCounter) CountByUser(ctx context.Context, userID uuid.UUID, opts ...store.Option) (int, error) {
	if m.CountByUserFunc != nil {
		return m.CountByUserFunc(userID)
	}
	return 0, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(Models()...), "failed to migrate tables")
	return db
}

func seedUser(t *testing.T, db *gorm.DB, display, email string) entity.User {
	t.Helper()
	u := entity.User{
		ID:          uuid.New(),
		FirstName:   "First",
		LastName:    "Last",
		DisplayName: display,
		Email:       email,
		PostalCode:  "10001",
		Active:      true,
		Updated:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	m := ToUserModel(u)
	require.NoError(t, db.Create(&m).Error, "failed to seed user")
	return u
}

func TestUserRepository_ListAndGet(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	bob := seedUser(t, db, "bob", "bob@example.com")
	alice := seedUser(t, db, "alice", "alice@example.com")

	counts := map[uuid.UUID]int{alice.ID: 2}
	repo := NewUserRepository(store.NewExecutor(db), &mockWatchListCounter{
		CountByUserFunc: func(id uuid.UUID) (int, error) { return counts[id], nil },
	})

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].DisplayName)
	assert.Equal(t, 2, users[0].WatchListCount)
	assert.Equal(t, bob.ID, users[1].ID)
	assert.Equal(t, 0, users[1].WatchListCount)

	got, err := repo.Get(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, got.Email)
	assert.Equal(t, 2, got.WatchListCount)
	assert.True(t, alice.Updated.Equal(got.Updated))

	_, err = repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.Get(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestUserRepository_Update(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	u := seedUser(t, db, "carol", "carol@example.com")
	repo := NewUserRepository(store.NewExecutor(db), &mockWatchListCounter{})
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	u.DisplayName = "carol2"
	u.PostalCode = "94105"
	u.Active = false // not updatable here
	got, err := repo.Update(context.Background(), u)
	require.NoError(t, err)

	assert.Equal(t, "carol2", got.DisplayName)
	assert.Equal(t, "94105", got.PostalCode)
	assert.True(t, got.Active)
	assert.True(t, now.Equal(got.Updated))

	u.ID = uuid.New()
	_, err = repo.Update(context.Background(), u)
	assert.ErrorIs(t, err, store.ErrNotFound)

	u.Email = ""
	_, err = repo.Update(context.Background(), u)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

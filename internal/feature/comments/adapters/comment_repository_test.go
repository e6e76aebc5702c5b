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

	"stockwatcher/internal/feature/comments/domain/entity"
	"stockwatcher/internal/platform/store"
)

func setupTestRepository(t *testing.T) (*gorm.DB, *CommentRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(Models()...), "failed to migrate tables")

	return db, NewCommentRepository(store.NewExecutor(db))
}

func insertComment(t *testing.T, repo *CommentRepository, symbol string, user uuid.UUID, text string) entity.Comment {
	t.Helper()
	c, err := repo.Insert(context.Background(), entity.Comment{
		Symbol:          symbol,
		UserID:          user,
		UserDisplayName: "trader",
		Text:            text,
	})
	require.NoError(t, err)
	return c
}

func texts(cs []entity.Comment) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Text)
	}
	return out
}

func TestCommentRepository_Insert(t *testing.T) {
	t.Parallel()

	db, repo := setupTestRepository(t)
	user := uuid.New()
	before := time.Now().Add(-time.Second)

	c := insertComment(t, repo, "AAPL", user, "buy the dip")

	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.True(t, c.Active)
	assert.True(t, c.Created.After(before))
	assert.Equal(t, store.TimeOf(c.ID), c.Created)

	var bySymbol, byUser int64
	db.Model(&CommentBySymbolModel{}).Count(&bySymbol)
	db.Model(&CommentByUserModel{}).Count(&byUser)
	assert.Equal(t, int64(1), bySymbol)
	assert.Equal(t, int64(1), byUser)

	got, err := repo.ByUser(context.Background(), user, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.True(t, c.Created.Equal(got[0].Created))
}

func TestCommentRepository_InsertValidation(t *testing.T) {
	t.Parallel()

	_, repo := setupTestRepository(t)
	user := uuid.New()

	tests := []struct {
		name    string
		comment entity.Comment
	}{
		{"no symbol", entity.Comment{UserID: user, Text: "x"}},
		{"no user", entity.Comment{Symbol: "AAPL", Text: "x"}},
		{"blank text", entity.Comment{Symbol: "AAPL", UserID: user, Text: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.Insert(context.Background(), tt.comment)
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
		})
	}
}

func TestCommentRepository_DeleteHidesFromBothIndexes(t *testing.T) {
	t.Parallel()

	_, repo := setupTestRepository(t)
	ctx := context.Background()
	user := uuid.New()

	first := insertComment(t, repo, "AAPL", user, "first")
	second := insertComment(t, repo, "AAPL", user, "second")

	require.NoError(t, repo.Delete(ctx, first))

	bySymbol, err := repo.BySymbol(ctx, "AAPL", 10)
	require.NoError(t, err)
	byUser, err := repo.ByUser(ctx, user, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"second"}, texts(bySymbol))
	assert.Equal(t, []string{"second"}, texts(byUser))
	assert.Equal(t, second.ID, bySymbol[0].ID)

	// deleting again is not an error
	require.NoError(t, repo.Delete(ctx, first))
}

func TestCommentRepository_DeleteUnknown(t *testing.T) {
	t.Parallel()

	db, repo := setupTestRepository(t)
	user := uuid.New()
	c := insertComment(t, repo, "AAPL", user, "kept")

	missing := c
	missing.Symbol = "MSFT"
	err := repo.Delete(context.Background(), missing)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// the by-user row was not touched
	var row CommentByUserModel
	require.NoError(t, db.First(&row, "comment_id = ?", c.ID).Error)
	assert.True(t, row.Active)

	err = repo.Delete(context.Background(), entity.Comment{Symbol: "AAPL"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestCommentRepository_DeleteMissingUserRowRollsBack(t *testing.T) {
	t.Parallel()

	db, repo := setupTestRepository(t)
	c := insertComment(t, repo, "AAPL", uuid.New(), "kept")

	wrongUser := c
	wrongUser.UserID = uuid.New()
	err := repo.Delete(context.Background(), wrongUser)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// both indexes still show the comment
	var bySymbol CommentBySymbolModel
	require.NoError(t, db.First(&bySymbol, "comment_id = ?", c.ID).Error)
	assert.True(t, bySymbol.Active)
	var byUser CommentByUserModel
	require.NoError(t, db.First(&byUser, "comment_id = ?", c.ID).Error)
	assert.True(t, byUser.Active)
}

func TestCommentRepository_LimitAppliesToActiveComments(t *testing.T) {
	t.Parallel()

	_, repo := setupTestRepository(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	c1 := insertComment(t, repo, "MSFT", alice, "one")
	insertComment(t, repo, "MSFT", bob, "two")
	c3 := insertComment(t, repo, "MSFT", alice, "three")
	insertComment(t, repo, "MSFT", bob, "four")
	insertComment(t, repo, "IBM", alice, "elsewhere")

	require.NoError(t, repo.Delete(ctx, c3))

	got, err := repo.BySymbol(ctx, "MSFT", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"four", "two"}, texts(got), "newest first, deleted skipped before limiting")

	got, err = repo.BySymbol(ctx, "MSFT", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"four", "two", "one"}, texts(got))

	got, err = repo.ByUser(ctx, alice, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"elsewhere", "one"}, texts(got))
	assert.Equal(t, c1.ID, got[1].ID)

	_, err = repo.BySymbol(ctx, "MSFT", 0)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = repo.ByUser(ctx, uuid.Nil, 5)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

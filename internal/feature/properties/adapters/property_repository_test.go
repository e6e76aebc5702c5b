package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stockwatcher/internal/platform/store"
)

func setupTestRepository(t *testing.T) (*gorm.DB, *PropertyRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(Models()...), "failed to migrate tables")
	return db, NewPropertyRepository(store.NewExecutor(db))
}

func ptr[T any](v T) *T { return &v }

func TestPropertyRepository_TypedGetters(t *testing.T) {
	t.Parallel()

	db, repo := setupTestRepository(t)
	ctx := context.Background()
	id := uuid.New()
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Create(&[]PropertyModel{
		{Name: "maintenance", BoolValue: ptr(true)},
		{Name: "page_size", IntValue: ptr(int32(25))},
		{Name: "max_rows", LongValue: ptr(int64(1) << 40)},
		{Name: "launched", TimestampValue: &at},
		{Name: "ratio", FloatValue: ptr(float32(0.5))},
		{Name: "pi", DoubleValue: ptr(3.14159)},
		{Name: "fee", DecimalValue: decimal.NewNullDecimal(decimal.RequireFromString("0.0125"))},
		{Name: "tenant", UUIDValue: &id},
		{Name: "banner", StringValue: ptr("hello")},
	}).Error)

	b, err := repo.Bool(ctx, "maintenance")
	require.NoError(t, err)
	assert.True(t, b)

	i, err := repo.Int(ctx, "page_size")
	require.NoError(t, err)
	assert.Equal(t, int32(25), i)

	l, err := repo.Long(ctx, "max_rows")
	require.NoError(t, err)
	assert.Equal(t, int64(1)<<40, l)

	ts, err := repo.Timestamp(ctx, "launched")
	require.NoError(t, err)
	assert.True(t, at.Equal(ts))

	f, err := repo.Float(ctx, "ratio")
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), f)

	d, err := repo.Double(ctx, "pi")
	require.NoError(t, err)
	assert.InDelta(t, 3.14159, d, 1e-9)

	dec, err := repo.Decimal(ctx, "fee")
	require.NoError(t, err)
	assert.True(t, dec.Equal(decimal.RequireFromString("0.0125")), "got %s", dec)

	u, err := repo.UUID(ctx, "tenant")
	require.NoError(t, err)
	assert.Equal(t, id, u)

	s, err := repo.String(ctx, "banner")
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestPropertyRepository_Errors(t *testing.T) {
	t.Parallel()

	db, repo := setupTestRepository(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&PropertyModel{Name: "banner", StringValue: ptr("hello")}).Error)

	_, err := repo.String(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = repo.Bool(ctx, "banner")
	assert.ErrorIs(t, err, store.ErrTypeMismatch)
	_, err = repo.Timestamp(ctx, "banner")
	assert.ErrorIs(t, err, store.ErrTypeMismatch)
	_, err = repo.Decimal(ctx, "banner")
	assert.ErrorIs(t, err, store.ErrTypeMismatch)

	_, err = repo.Long(ctx, "")
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestPropertyRepository_SetTimestamp(t *testing.T) {
	t.Parallel()

	db, repo := setupTestRepository(t)
	ctx := context.Background()
	require.NoError(t, db.Create(&PropertyModel{Name: LastTradeDate, StringValue: ptr("2024-01-01")}).Error)

	d1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetTimestamp(ctx, LastTradeDate, d1))

	got, err := repo.Timestamp(ctx, LastTradeDate)
	require.NoError(t, err)
	assert.True(t, d1.Equal(got))

	// the previous string value was replaced
	_, err = repo.String(ctx, LastTradeDate)
	assert.ErrorIs(t, err, store.ErrTypeMismatch)

	d2 := d1.AddDate(0, 0, 1)
	require.NoError(t, repo.SetTimestamp(ctx, LastTradeDate, d2))
	got, err = repo.Timestamp(ctx, LastTradeDate)
	require.NoError(t, err)
	assert.True(t, d2.Equal(got))
}

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stockwatcher/internal/platform/config"
	"stockwatcher/internal/platform/store"
)

func sqliteOpener(dsn string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
}

type probeModel struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func shortRetryInterval(t *testing.T) {
	t.Helper()
	prev := retryInterval
	retryInterval = time.Millisecond
	t.Cleanup(func() { retryInterval = prev })
}

// TestBuildDSN は複数ノードの接続URLが正しく生成されることを検証します。
func TestBuildDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.DatabaseConfig
		want string
	}{
		{
			name: "single node gets default port",
			cfg:  config.DatabaseConfig{Nodes: []string{"n1"}, Port: 5432, User: "u", Password: "p", Name: "sw", SSLMode: "disable"},
			want: "postgres://u:p@n1:5432/sw?application_name=stockwatcher&sslmode=disable&target_session_attrs=read-write",
		},
		{
			name: "explicit ports are kept and blanks skipped",
			cfg:  config.DatabaseConfig{Nodes: []string{"n1:6432", " ", "n2"}, Port: 5432, User: "u", Password: "p", Name: "sw", SSLMode: "require"},
			want: "postgres://u:p@n1:6432,n2:5432/sw?application_name=stockwatcher&sslmode=require&target_session_attrs=read-write",
		},
		{
			name: "password is escaped",
			cfg:  config.DatabaseConfig{Nodes: []string{"n1"}, Port: 5432, User: "u", Password: "p@ss/word", Name: "sw", SSLMode: "disable"},
			want: "postgres://u:p%40ss%2Fword@n1:5432/sw?application_name=stockwatcher&sslmode=disable&target_session_attrs=read-write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildDSN(tt.cfg))
		})
	}
}

// TestConnectWithRetry_SuccessOnFirstTry は初回接続成功時にリトライせずDBを返すことを検証します。
func TestConnectWithRetry_SuccessOnFirstTry(t *testing.T) {
	mockDB := &gorm.DB{}
	attempts := 0
	opener := func(dsn string) (*gorm.DB, error) {
		attempts++
		return mockDB, nil
	}

	db, err := ConnectWithRetry(context.Background(), "test-dsn", 5*time.Second, opener)

	require.NoError(t, err)
	assert.Same(t, mockDB, db)
	assert.Equal(t, 1, attempts)
}

// TestConnectWithRetry_RetriesOnFailure は接続失敗時にリトライして最終的に成功することを検証します。
func TestConnectWithRetry_RetriesOnFailure(t *testing.T) {
	shortRetryInterval(t)

	mockDB := &gorm.DB{}
	attempts := 0
	opener := func(dsn string) (*gorm.DB, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		return mockDB, nil
	}

	db, err := ConnectWithRetry(context.Background(), "test-dsn", time.Second, opener)

	require.NoError(t, err)
	assert.Same(t, mockDB, db)
	assert.Equal(t, 3, attempts)
}

// TestConnectWithRetry_TimeoutAfterRetries はタイムアウト後にエラーが返されることを検証します。
func TestConnectWithRetry_TimeoutAfterRetries(t *testing.T) {
	attempts := 0
	opener := func(dsn string) (*gorm.DB, error) {
		attempts++
		return nil, errors.New("connection refused")
	}

	_, err := ConnectWithRetry(context.Background(), "test-dsn", 100*time.Millisecond, opener)

	require.Error(t, err)
	assert.GreaterOrEqual(t, attempts, 1)
}

func TestConnectWithRetry_ContextCancelled(t *testing.T) {
	shortRetryInterval(t)

	ctx, cancel := context.WithCancel(context.Background())
	opener := func(dsn string) (*gorm.DB, error) {
		cancel()
		return nil, errors.New("connection refused")
	}

	_, err := ConnectWithRetry(ctx, "test-dsn", time.Minute, opener)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenWith_NoNodes(t *testing.T) {
	t.Parallel()

	_, err := OpenWith(context.Background(), config.DatabaseConfig{}, sqliteOpener)

	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	assert.ErrorIs(t, err, config.ErrNoNodes)
}

func TestMigrate_NoModels(t *testing.T) {
	t.Parallel()

	db, err := sqliteOpener("")
	require.NoError(t, err)
	assert.ErrorIs(t, Migrate(db), store.ErrInvalidArgument)
}

func TestOpenWith_Lifecycle(t *testing.T) {
	t.Parallel()

	cfg := config.DatabaseConfig{
		Nodes:           []string{"n1", "n2"},
		MaxOpenConns:    1,
		ShutdownTimeout: time.Second,
		ConnectTimeout:  time.Second,
	}
	m, err := OpenWith(context.Background(), cfg, sqliteOpener)
	require.NoError(t, err)

	assert.Equal(t, []string{"n1", "n2"}, m.Nodes())
	require.NoError(t, Migrate(m.DB(), &probeModel{}))
	require.NoError(t, m.DB().Create(&probeModel{Name: "ok"}).Error)
	require.NoError(t, m.Ping(context.Background()))

	m.Shutdown()
	// second shutdown is a no-op
	m.Shutdown()

	assert.ErrorIs(t, m.Ping(context.Background()), store.ErrStoreUnavailable)
}

// Package db owns the process-wide connection to the replicated cluster.
package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"stockwatcher/internal/platform/config"
	"stockwatcher/internal/platform/logging"
	"stockwatcher/internal/platform/store"
)

// retryInterval is the pause between connection attempts during startup.
var retryInterval = 3 * time.Second

// Opener opens a gorm handle for a DSN. Tests substitute it.
type Opener func(dsn string) (*gorm.DB, error)

// Manager holds the shared handle. One Manager exists per process; it is
// safe for concurrent use.
type Manager struct {
	db    *gorm.DB
	cfg   config.DatabaseConfig
	close sync.Once
}

// BuildDSN renders a multi-host connection URL. The driver tries the nodes in
// order and settles on the first writable one.
func BuildDSN(cfg config.DatabaseConfig) string {
	hosts := make([]string, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(n); err != nil {
			n = net.JoinHostPort(n, strconv.Itoa(cfg.Port))
		}
		hosts = append(hosts, n)
	}

	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	q.Set("application_name", "stockwatcher")
	q.Set("target_session_attrs", "read-write")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     strings.Join(hosts, ","),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// ConnectWithRetry calls open until it succeeds or timeout elapses.
func ConnectWithRetry(ctx context.Context, dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %s: %w", timeout, err)
		}
		logging.Warn().Err(err).Msg("db connect failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

func postgresOpener(slowThreshold time.Duration) Opener {
	return func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         logging.NewGormLogger(slowThreshold),
			TranslateError: true,
		})
	}
}

// Open validates cfg, connects to the cluster and verifies at least one node
// answers. Failure here is fatal to the process.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Manager, error) {
	return OpenWith(ctx, cfg, postgresOpener(cfg.SlowQueryThreshold))
}

// OpenWith is Open with a caller-supplied opener.
func OpenWith(ctx context.Context, cfg config.DatabaseConfig, open Opener) (*Manager, error) {
	if len(cfg.Nodes) == 0 {
		return nil, store.Errorf("db.Open", store.ErrInvalidArgument, "%w", config.ErrNoNodes)
	}

	db, err := ConnectWithRetry(ctx, BuildDSN(cfg), cfg.ConnectTimeout, open)
	if err != nil {
		return nil, store.Wrap("db.Open", err)
	}

	m := NewManager(db, cfg)
	if err := m.configurePool(); err != nil {
		return nil, err
	}
	if err := m.Ping(ctx); err != nil {
		m.Shutdown()
		return nil, err
	}

	logging.Info().Strs("nodes", cfg.Nodes).Str("database", cfg.Name).Msg("connected to cluster")
	return m, nil
}

// NewManager wraps an already open handle.
func NewManager(db *gorm.DB, cfg config.DatabaseConfig) *Manager {
	return &Manager{db: db, cfg: cfg}
}

func (m *Manager) configurePool() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return store.Wrap("db.configurePool", err)
	}
	if m.cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(m.cfg.MaxOpenConns)
	}
	if m.cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(m.cfg.MaxIdleConns)
	}
	if m.cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(m.cfg.ConnMaxLifetime)
	}
	return nil
}

// DB returns the shared handle.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Nodes returns the configured node list.
func (m *Manager) Nodes() []string {
	return append([]string(nil), m.cfg.Nodes...)
}

// Ping checks that a node answers.
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return store.Wrap("db.Ping", err)
	}
	return store.Wrap("db.Ping", sqlDB.PingContext(ctx))
}

// Shutdown closes the pool, waiting at most the configured shutdown timeout.
// A failure or timeout is logged and otherwise ignored. Later calls are no-ops.
func (m *Manager) Shutdown() {
	m.close.Do(func() {
		timeout := m.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}

		done := make(chan error, 1)
		go func() {
			sqlDB, err := m.db.DB()
			if err != nil {
				done <- err
				return
			}
			done <- sqlDB.Close()
		}()

		select {
		case err := <-done:
			if err != nil {
				logging.Error().Err(err).Msg("failed to close cluster connection")
				return
			}
			logging.Info().Msg("cluster connection closed")
		case <-time.After(timeout):
			logging.Error().Err(errors.New("shutdown timed out")).Dur("timeout", timeout).Msg("failed to close cluster connection")
		}
	})
}

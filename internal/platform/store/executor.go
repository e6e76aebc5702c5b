// Package store runs statements against the cluster with per-call options.
//
// Every repository goes through an Executor: it applies the consistency
// level, the retry policy and the timeout, and translates driver errors into
// the kinds declared in errors.go.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"stockwatcher/internal/platform/logging"
)

type Executor struct {
	db     *gorm.DB
	tracer gormlogger.Interface

	mu       sync.RWMutex
	defaults Options
}

// NewExecutor wraps db. opts adjust DefaultOptions for every call made
// through the executor.
func NewExecutor(db *gorm.DB, opts ...Option) *Executor {
	return &Executor{
		db:       db,
		tracer:   logging.NewGormLogger(0).LogMode(gormlogger.Info),
		defaults: DefaultOptions().Apply(opts...),
	}
}

func (e *Executor) DB() *gorm.DB {
	return e.db
}

// Defaults returns the options applied when a call passes none.
func (e *Executor) Defaults() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.defaults
}

// SetDefaults replaces the executor-wide options. Calls already running keep
// the options they started with.
func (e *Executor) SetDefaults(o Options) {
	if o.Retry == nil {
		o.Retry = FallthroughRetryPolicy{}
	}
	e.mu.Lock()
	e.defaults = o
	e.mu.Unlock()
}

// Exec runs fn once per attempt until it succeeds, fails with a
// non-retryable error, or the policy gives up.
func (e *Executor) Exec(ctx context.Context, op string, fn func(tx *gorm.DB) error, opts ...Option) error {
	return e.run(ctx, op, e.Defaults().Apply(opts...), false, fn)
}

// Batch runs fn inside one transaction. All statements apply or none do.
func (e *Executor) Batch(ctx context.Context, op string, fn func(tx *gorm.DB) error, opts ...Option) error {
	return e.run(ctx, op, e.Defaults().Apply(opts...), true, fn)
}

// Query runs fn and returns its value.
func Query[T any](ctx context.Context, e *Executor, op string, fn func(tx *gorm.DB) (T, error), opts ...Option) (T, error) {
	var out T
	err := e.run(ctx, op, e.Defaults().Apply(opts...), false, func(tx *gorm.DB) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Async submits fn and returns immediately. The statement runs under ctx;
// abandoning the future does not cancel it.
func Async[T any](ctx context.Context, e *Executor, op string, fn func(tx *gorm.DB) (T, error), opts ...Option) *Future[T] {
	f := newFuture[T]()
	go func() {
		v, err := Query(ctx, e, op, fn, opts...)
		f.complete(v, err)
	}()
	return f
}

func (e *Executor) run(ctx context.Context, op string, o Options, batch bool, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = Wrap(op, e.attempt(ctx, o, batch, fn))
		if err == nil {
			break
		}
		// 応答が失われた書き込みは適用済みの可能性がある
		if !o.Idempotent && !NotSent(err) {
			break
		}
		wait, retry := o.Retry.Next(attempt, err)
		if !retry {
			break
		}
		statementRetries.WithLabelValues(op).Inc()
		logging.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("backoff", wait).Msg("retrying statement")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			err = Wrap(op, ctx.Err())
		case <-t.C:
		}
		if ctx.Err() != nil {
			break
		}
	}

	statementsTotal.WithLabelValues(op, outcome(err)).Inc()
	statementDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if o.Tracing {
		logging.Info().
			Str("op", op).
			Stringer("consistency", o.Consistency).
			Dur("elapsed", time.Since(start)).
			AnErr("error", err).
			Msg("statement traced")
	}
	return err
}

func (e *Executor) attempt(ctx context.Context, o Options, batch bool, fn func(tx *gorm.DB) error) error {
	db := e.db.WithContext(ctx)
	if o.Tracing {
		db = db.Session(&gorm.Session{Logger: e.tracer})
	}

	// Only the postgres dialect understands per-transaction commit levels.
	replicated := db.Dialector.Name() == "postgres"
	if !replicated && !batch {
		return fn(db)
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if replicated {
			stmt := fmt.Sprintf("SET LOCAL synchronous_commit = %s", o.Consistency.synchronousCommit())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

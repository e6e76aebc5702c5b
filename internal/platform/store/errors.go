package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Error kinds returned across the data-access boundary. Nothing leaves a
// repository in a driver-specific shape; callers match with errors.Is.
var (
	// ErrInvalidArgument indicates a caller-supplied value is empty or out of domain.
	// It is never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates a keyed lookup matched no row.
	// Scans that match nothing return an empty result instead.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict indicates a conditional write was not applied or the
	// stored state contradicts the request.
	ErrStateConflict = errors.New("state conflict")

	// ErrStoreUnavailable wraps transport and protocol failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrTimeout indicates the call's deadline passed or it was cancelled.
	ErrTimeout = errors.New("store timeout")

	// ErrIllegalState indicates a stored value violates an entity invariant.
	ErrIllegalState = errors.New("illegal state")

	// ErrTypeMismatch indicates a typed lookup found a value of another type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// Error carries the failing operation, its kind and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil || e.Err == e.Kind {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds a taxonomy error of the given kind.
func Errorf(op string, kind error, format string, args ...interface{}) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

var kinds = []error{
	ErrInvalidArgument,
	ErrNotFound,
	ErrStateConflict,
	ErrStoreUnavailable,
	ErrTimeout,
	ErrIllegalState,
	ErrTypeMismatch,
}

// KindOf returns the taxonomy kind of err, or nil when err carries none.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Wrap translates err into the taxonomy. Errors that already carry a kind
// are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != nil {
		return err
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPg(pgErr.Code)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ErrStoreUnavailable
	}
	if pgconn.Timeout(err) {
		return ErrTimeout
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrStateConflict
	}
	if errors.Is(err, gorm.ErrInvalidData) || errors.Is(err, gorm.ErrInvalidValue) {
		return ErrInvalidArgument
	}
	return ErrStoreUnavailable
}

// classifyPg maps SQLSTATE codes. Connection, resource and serialization
// failures are transient; constraint violations are conflicts.
func classifyPg(code string) error {
	switch {
	case code == "23505" || code == "23P01":
		return ErrStateConflict
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"):
		return ErrInvalidArgument
	case code == "57014":
		return ErrTimeout
	default:
		return ErrStoreUnavailable
	}
}

// Retryable reports whether err is eligible for a retry policy.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTimeout)
}

// NotSent reports whether the failed statement never reached the server, so
// re-sending it cannot apply it twice.
func NotSent(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	return pgconn.SafeToRetry(err)
}

package store

import (
	"fmt"
	"strings"
	"time"
)

// Consistency is the acknowledgement level a statement waits for.
type Consistency int

const (
	ConsistencyAny Consistency = iota
	ConsistencyOne
	ConsistencyLocalOne
	ConsistencyQuorum
	ConsistencyLocalQuorum
	ConsistencyAll
)

var consistencyNames = map[Consistency]string{
	ConsistencyAny:         "ANY",
	ConsistencyOne:         "ONE",
	ConsistencyLocalOne:    "LOCAL_ONE",
	ConsistencyQuorum:      "QUORUM",
	ConsistencyLocalQuorum: "LOCAL_QUORUM",
	ConsistencyAll:         "ALL",
}

func (c Consistency) String() string {
	if s, ok := consistencyNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Consistency(%d)", int(c))
}

// ParseConsistency accepts the level names case-insensitively.
func ParseConsistency(s string) (Consistency, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for c, n := range consistencyNames {
		if n == name {
			return c, nil
		}
	}
	return 0, Errorf("store.ParseConsistency", ErrInvalidArgument, "unknown consistency %q", s)
}

// synchronousCommit maps a level onto the replication setting applied to
// the statement's transaction.
func (c Consistency) synchronousCommit() string {
	switch c {
	case ConsistencyAny:
		return "off"
	case ConsistencyOne, ConsistencyLocalOne:
		return "local"
	case ConsistencyAll:
		return "remote_apply"
	default:
		return "on"
	}
}

// Options are the per-statement execution options. The zero value is not
// meaningful; start from DefaultOptions or the executor's defaults.
type Options struct {
	Consistency Consistency
	Retry       RetryPolicy
	Tracing     bool
	// Idempotent marks a statement that may be re-sent after an ambiguous
	// failure. Non-idempotent statements are retried only when the driver
	// reports the request never left the client.
	Idempotent bool
	// Timeout bounds a single call including retries. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration
}

// DefaultOptions returns ONE consistency with the default retry policy.
func DefaultOptions() Options {
	return Options{
		Consistency: ConsistencyOne,
		Retry:       DefaultRetryPolicy(),
		Idempotent:  true,
		Timeout:     10 * time.Second,
	}
}

// Option overrides one field of Options for a single call.
type Option func(*Options)

func WithConsistency(c Consistency) Option {
	return func(o *Options) { o.Consistency = c }
}

func WithRetry(p RetryPolicy) Option {
	return func(o *Options) { o.Retry = p }
}

func WithIdempotent(on bool) Option {
	return func(o *Options) { o.Idempotent = on }
}

func WithTracing(on bool) Option {
	return func(o *Options) { o.Tracing = on }
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// Apply returns a copy of o with opts applied in order.
func (o Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Retry == nil {
		o.Retry = FallthroughRetryPolicy{}
	}
	return o
}

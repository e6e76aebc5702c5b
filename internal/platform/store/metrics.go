package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatcher",
		Subsystem: "store",
		Name:      "statements_total",
		Help:      "Executed statements by operation and outcome.",
	}, []string{"op", "outcome"})

	statementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stockwatcher",
		Subsystem: "store",
		Name:      "statement_duration_seconds",
		Help:      "Statement latency including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})

	statementRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatcher",
		Subsystem: "store",
		Name:      "statement_retries_total",
		Help:      "Retried attempts by operation.",
	}, []string{"op"})
)

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrStateConflict:
		return "conflict"
	case ErrTimeout:
		return "timeout"
	case ErrInvalidArgument:
		return "invalid"
	default:
		return "error"
	}
}

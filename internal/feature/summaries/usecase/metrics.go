package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stockwatcher",
		Subsystem: "daily_summary",
		Name:      "runs_total",
		Help:      "Daily summary runs by outcome.",
	}, []string{"outcome"})

	summariesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stockwatcher",
		Subsystem: "daily_summary",
		Name:      "summaries_written_total",
		Help:      "Daily summary rows written.",
	})

	lastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "stockwatcher",
		Subsystem: "daily_summary",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run.",
	})
)

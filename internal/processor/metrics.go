package processor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts Run invocations by outcome, the processor-level
	// surface for the "seq_num regression" and generic failure scenarios
	// the event dispatcher's confirmed handler ends up reporting.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quartz",
			Subsystem: "processor",
			Name:      "runs_total",
			Help:      "Total number of batch update requests processed",
		},
		[]string{"result"}, // "applied", "seq_num_regression", "error"
	)

	// QueriesTotal counts Query invocations by outcome.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quartz",
			Subsystem: "processor",
			Name:      "queries_total",
			Help:      "Total number of balance queries processed",
		},
		[]string{"result"}, // "ok", "error"
	)

	// WithdrawalsTotal counts withdrawals disbursed across all applied
	// batches, the metric an operator would alert on for unexpectedly
	// large outflows.
	WithdrawalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quartz",
			Subsystem: "processor",
			Name:      "withdrawals_total",
			Help:      "Total number of withdrawals disbursed across all applied batches",
		},
	)

	// BatchSize observes the number of requests in each applied batch.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "quartz",
			Subsystem: "processor",
			Name:      "batch_size",
			Help:      "Number of requests in each applied update batch",
			Buckets:   prometheus.LinearBuckets(0, 10, 10),
		},
	)
)

// Package metrics holds the Prometheus collectors for every component of
// the sortition follower, grouped per consumer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processorEvaluateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortition",
		Subsystem: "processor",
		Name:      "evaluate_total",
		Help:      "Count of burnchain blocks evaluated for sortition.",
	}, []string{"network", "status"})

	processorEvaluateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sortition",
		Subsystem: "processor",
		Name:      "evaluate_duration_seconds",
		Help:      "Duration of evaluating one burnchain block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	processorSortitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortition",
		Subsystem: "processor",
		Name:      "sortitions_total",
		Help:      "Count of processed blocks by sortition outcome.",
	}, []string{"network", "outcome"})

	processorOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortition",
		Subsystem: "processor",
		Name:      "operations_total",
		Help:      "Count of checked operations by disposition.",
	}, []string{"network", "disposition"})
)

// Processor tracks metrics for the sortition processor.
type Processor struct {
	network string
}

// NewProcessor creates a Processor metrics collector.
func NewProcessor(network string) *Processor {
	if network == "" {
		network = "unknown"
	}
	return &Processor{network: network}
}

// ObserveEvaluate records the outcome and duration of one block evaluation.
func (m Processor) ObserveEvaluate(err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	processorEvaluateTotal.WithLabelValues(m.network, status).Inc()
	processorEvaluateDuration.WithLabelValues(m.network, status).
		Observe(time.Since(started).Seconds())
}

// ObserveSortition records whether a processed block chose a winner and how
// many operations were accepted and rejected.
func (m Processor) ObserveSortition(won bool, accepted, rejected int) {
	outcome := "no_winner"
	if won {
		outcome = "winner"
	}
	processorSortitionsTotal.WithLabelValues(m.network, outcome).Inc()
	processorOperationsTotal.WithLabelValues(m.network, "accepted").Add(float64(accepted))
	processorOperationsTotal.WithLabelValues(m.network, "rejected").Add(float64(rejected))
}

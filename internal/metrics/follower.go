package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	followerFetchTipTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortition",
		Subsystem: "follower",
		Name:      "fetch_tip_total",
		Help:      "Count of attempts to fetch the burnchain tip height.",
	}, []string{"network", "status"})

	followerFetchTipDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sortition",
		Subsystem: "follower",
		Name:      "fetch_tip_duration_seconds",
		Help:      "Duration of fetching the burnchain tip height.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})

	followerFetchBlockTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortition",
		Subsystem: "follower",
		Name:      "fetch_block_total",
		Help:      "Count of burnchain block fetches.",
	}, []string{"network", "status"})

	followerFetchBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sortition",
		Subsystem: "follower",
		Name:      "fetch_block_duration_seconds",
		Help:      "Duration of fetching one burnchain block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})
)

// Follower tracks metrics for the burnchain follower loop.
type Follower struct {
	network string
}

// NewFollower creates a Follower metrics collector.
func NewFollower(network string) *Follower {
	if network == "" {
		network = "unknown"
	}
	return &Follower{network: network}
}

// ObserveFetchTip records a tip-height fetch outcome and duration.
func (m Follower) ObserveFetchTip(err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	followerFetchTipTotal.WithLabelValues(m.network, status).Inc()
	followerFetchTipDuration.WithLabelValues(m.network, status).
		Observe(time.Since(started).Seconds())
}

// ObserveFetchBlock records a block fetch outcome and duration.
func (m Follower) ObserveFetchBlock(err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	followerFetchBlockTotal.WithLabelValues(m.network, status).Inc()
	followerFetchBlockDuration.WithLabelValues(m.network, status).
		Observe(time.Since(started).Seconds())
}

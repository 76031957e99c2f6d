package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcClientRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortition",
		Subsystem: "rpc_client",
		Name:      "requests_total",
		Help:      "Count of burnchain node RPC requests.",
	}, []string{"operation", "network", "status"})

	rpcClientRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sortition",
		Subsystem: "rpc_client",
		Name:      "request_duration_seconds",
		Help:      "Duration of burnchain node RPC requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "network", "status"})
)

// RPCClient tracks metrics for burnchain node RPC calls.
type RPCClient struct {
	network string
}

// NewRPCClient creates an RPCClient metrics collector.
func NewRPCClient(network string) *RPCClient {
	if network == "" {
		network = "unknown"
	}
	return &RPCClient{network: network}
}

// Observe records duration and status of one RPC call.
func (m RPCClient) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	rpcClientRequestsTotal.WithLabelValues(operation, m.network, status).Inc()
	rpcClientRequestDuration.WithLabelValues(operation, m.network, status).
		Observe(time.Since(started).Seconds())
}

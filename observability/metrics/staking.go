package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StakingMetrics tracks operations applied by the node.
type StakingMetrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	nonceRejects prometheus.Counter
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

// Staking returns the lazily registered staking operation metrics.
func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "staking",
				Name:      "operations_total",
				Help:      "Applied staking operations by type and outcome code.",
			}, []string{"op", "outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakepool",
				Subsystem: "staking",
				Name:      "operation_duration_seconds",
				Help:      "Time spent applying a staking operation, including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			nonceRejects: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "staking",
				Name:      "nonce_rejections_total",
				Help:      "Transactions rejected for carrying an unexpected nonce.",
			}),
		}
		prometheus.MustRegister(
			stakingRegistry.operations,
			stakingRegistry.duration,
			stakingRegistry.nonceRejects,
		)
	})
	return stakingRegistry
}

// ObserveOperation records one operation. An empty code counts as success.
func (m *StakingMetrics) ObserveOperation(op, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := code
	if outcome == "" {
		outcome = "ok"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveNonceRejected counts a replayed or out-of-order transaction.
func (m *StakingMetrics) ObserveNonceRejected() {
	if m == nil {
		return
	}
	m.nonceRejects.Inc()
}

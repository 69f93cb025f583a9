package observability

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"stakepool/core/events"
)

// EventMetrics derives pool level gauges from committed staking events. It
// satisfies events.Emitter so the node can publish to it directly.
type EventMetrics struct {
	events      *prometheus.CounterVec
	totalStaked prometheus.Gauge
	rewardsPaid prometheus.Counter
	principal   prometheus.Counter
	reserve     prometheus.Gauge
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the metrics registry tracking staking events.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Committed staking events by type.",
			}, []string{"type"}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakepool",
				Subsystem: "pool",
				Name:      "total_staked",
				Help:      "Principal currently staked in the pool.",
			}),
			rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "pool",
				Name:      "rewards_paid_total",
				Help:      "Reward units paid out of custody.",
			}),
			principal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakepool",
				Subsystem: "pool",
				Name:      "principal_returned_total",
				Help:      "Principal units returned by unstakes.",
			}),
			reserve: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakepool",
				Subsystem: "pool",
				Name:      "reward_reserve",
				Help:      "Reward reserve reported by the latest funding.",
			}),
		}
		prometheus.MustRegister(
			eventRegistry.events,
			eventRegistry.totalStaked,
			eventRegistry.rewardsPaid,
			eventRegistry.principal,
			eventRegistry.reserve,
		)
	})
	return eventRegistry
}

func attrFloat(raw string) (float64, bool) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return float64(v), true
}

// Emit implements events.Emitter.
func (m *EventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	m.events.WithLabelValues(payload.Type).Inc()
	switch payload.Type {
	case events.TypeStakingStaked:
		if v, ok := attrFloat(payload.Attr("totalStaked")); ok {
			m.totalStaked.Set(v)
		}
	case events.TypeStakingRewardsClaimed:
		if v, ok := attrFloat(payload.Attr("reward")); ok {
			m.rewardsPaid.Add(v)
		}
	case events.TypeStakingUnstaked:
		if v, ok := attrFloat(payload.Attr("totalStaked")); ok {
			m.totalStaked.Set(v)
		}
		if v, ok := attrFloat(payload.Attr("principal")); ok {
			m.principal.Add(v)
		}
	case events.TypeStakingFunded:
		if v, ok := attrFloat(payload.Attr("reserve")); ok {
			m.reserve.Set(v)
		}
	}
}

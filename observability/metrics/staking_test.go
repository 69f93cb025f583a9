package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStakingMetricsCountOutcomes(t *testing.T) {
	m := Staking()
	before := testutil.ToFloat64(m.operations.WithLabelValues("unstake", "LockPeriodNotElapsed"))
	m.ObserveOperation("unstake", "LockPeriodNotElapsed", time.Millisecond)
	after := testutil.ToFloat64(m.operations.WithLabelValues("unstake", "LockPeriodNotElapsed"))
	if after-before != 1 {
		t.Fatalf("expected counter to advance by one, got %v", after-before)
	}

	okBefore := testutil.ToFloat64(m.operations.WithLabelValues("stake", "ok"))
	m.ObserveOperation("stake", "", time.Millisecond)
	if testutil.ToFloat64(m.operations.WithLabelValues("stake", "ok"))-okBefore != 1 {
		t.Fatalf("empty code should count as ok")
	}

	var nilMetrics *StakingMetrics
	nilMetrics.ObserveOperation("stake", "", 0)
	nilMetrics.ObserveNonceRejected()
}

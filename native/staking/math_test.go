package staking

import (
	"errors"
	"math"
	"testing"
)

func TestComputeReward(t *testing.T) {
	cases := []struct {
		name    string
		amount  uint64
		rate    uint64
		elapsed int64
		want    uint64
		err     error
	}{
		{name: "basic", amount: 1000, rate: 1, elapsed: 2, want: 2000},
		{name: "zero rate", amount: 1000, rate: 0, elapsed: 100, want: 0},
		{name: "negative elapsed", amount: 1000, rate: 1, elapsed: -4, want: 0},
		{name: "max fits", amount: math.MaxUint64, rate: 1, elapsed: 1, want: math.MaxUint64},
		{name: "product overflow", amount: math.MaxUint64, rate: 2, elapsed: 1, err: ErrArithmeticOverflow},
		{name: "elapsed overflow", amount: 1 << 32, rate: 1 << 31, elapsed: 4, err: ErrArithmeticOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := computeReward(tc.amount, tc.rate, tc.elapsed)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("reward mismatch: got %d want %d", got, tc.want)
			}
		})
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if _, err := checkedAdd(math.MaxUint64, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected add overflow, got %v", err)
	}
	if _, err := checkedSub(1, 2); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected sub underflow, got %v", err)
	}
	if v, err := checkedSub(5, 2); err != nil || v != 3 {
		t.Fatalf("unexpected sub result %d %v", v, err)
	}
	if _, err := checkedAddInt64(math.MaxInt64, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected int64 overflow, got %v", err)
	}
	if _, err := checkedSubInt64(math.MinInt64, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected int64 underflow, got %v", err)
	}
	if v, err := checkedSubInt64(10, -5); err != nil || v != 15 {
		t.Fatalf("unexpected result %d %v", v, err)
	}
}

func TestCode(t *testing.T) {
	if Code(nil) != "" {
		t.Fatalf("nil error should have no code")
	}
	if got := Code(errors.New("other")); got != "" {
		t.Fatalf("unexpected code %q", got)
	}
	if got := Code(ErrLockPeriodNotElapsed); got != "LockPeriodNotElapsed" {
		t.Fatalf("unexpected code %q", got)
	}
}

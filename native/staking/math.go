package staking

import (
	"math"

	"github.com/holiman/uint256"
)

// computeReward returns amount * rate * elapsed, rejecting any result that does
// not fit the token's uint64 denomination. Non-positive intervals accrue nothing.
func computeReward(amount, rate uint64, elapsed int64) (uint64, error) {
	if elapsed <= 0 || amount == 0 || rate == 0 {
		return 0, nil
	}
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(amount), uint256.NewInt(rate))
	if overflow {
		return 0, ErrArithmeticOverflow
	}
	product, overflow = product.MulOverflow(product, uint256.NewInt(uint64(elapsed)))
	if overflow || !product.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return product.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return sum.Uint64(), nil
}

func checkedSub(a, b uint64) (uint64, error) {
	diff, underflow := new(uint256.Int).SubOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if underflow {
		return 0, ErrArithmeticOverflow
	}
	return diff.Uint64(), nil
}

func checkedAddInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrArithmeticOverflow
	}
	return a + b, nil
}

func checkedSubInt64(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}

package staking

import (
	"fmt"

	"stakepool/core/events"
)

func (e *Engine) loadAuthorizedPool(caller [20]byte) (*Pool, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if pool.Authority != caller {
		return nil, ErrUnauthorized
	}
	return pool, nil
}

// UpdatePool replaces the reward rate and lock period. Unclaimed intervals are
// paid at the rate in effect when they are settled, and open positions unlock
// against the new lock period.
func (e *Engine) UpdatePool(caller [20]byte, rewardRate uint64, lockPeriod int64) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	if lockPeriod < 0 {
		return nil, fmt.Errorf("%w: lock period must not be negative", ErrInvalidParameter)
	}
	pool, err := e.loadAuthorizedPool(caller)
	if err != nil {
		return nil, err
	}
	pool.RewardRate = rewardRate
	pool.LockPeriod = lockPeriod
	pool.LastUpdateTime = now
	if err := e.state.StakingPoolPut(e.addresses.Pool, pool); err != nil {
		return nil, err
	}
	e.emit(events.StakingPoolUpdated{
		Authority:  pool.Authority,
		RewardRate: pool.RewardRate,
		LockPeriod: pool.LockPeriod,
		Timestamp:  now,
	})
	return pool.Clone(), nil
}

// SetPaused toggles whether new stakes are accepted. Claims and withdrawals
// are never blocked.
func (e *Engine) SetPaused(caller [20]byte, paused bool) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	pool, err := e.loadAuthorizedPool(caller)
	if err != nil {
		return nil, err
	}
	pool.Paused = paused
	pool.LastUpdateTime = now
	if err := e.state.StakingPoolPut(e.addresses.Pool, pool); err != nil {
		return nil, err
	}
	e.emit(events.StakingPauseToggled{Authority: pool.Authority, Paused: pool.Paused, Timestamp: now})
	return pool.Clone(), nil
}

// FundRewards moves amount from caller into custody without opening a
// position, growing the reserve rewards are paid from.
func (e *Engine) FundRewards(caller [20]byte, amount uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return 0, err
	}
	if err := e.deposit(caller, amount); err != nil {
		return 0, err
	}
	reserve, err := e.reserve(pool)
	if err != nil {
		return 0, err
	}
	e.emit(events.StakingRewardsFunded{Funder: caller, Amount: amount, Reserve: reserve})
	return reserve, nil
}

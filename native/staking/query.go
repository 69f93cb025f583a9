package staking

// Pool returns a copy of the pool record.
func (e *Engine) Pool() (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadPool()
}

// StakeOf returns a copy of owner's position or ErrNoActiveStake.
func (e *Engine) StakeOf(owner [20]byte) (*StakeRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.loadStake(owner)
}

// PendingRewards previews what ClaimRewards would pay owner right now. It does
// not check the reserve.
func (e *Engine) PendingRewards(owner [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	pool, err := e.loadPool()
	if err != nil {
		return 0, err
	}
	record, err := e.loadStake(owner)
	if err != nil {
		return 0, err
	}
	reward, _, err := accrue(record, pool.RewardRate, e.now())
	return reward, err
}

// RewardReserve returns the custody balance available for reward payouts.
func (e *Engine) RewardReserve() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	pool, err := e.loadPool()
	if err != nil {
		return 0, err
	}
	return e.reserve(pool)
}

package staking

// Seeds used to derive record addresses from the program identity.
const (
	PoolSeed  = "staking_pool"
	StakeSeed = "staking_info"
	VaultSeed = "staking_vault"
)

// Pool is the singleton configuration and aggregate state of the program.
type Pool struct {
	Authority      [20]byte
	RewardRate     uint64 // reward units per staked unit per second
	LockPeriod     int64  // seconds
	TotalStaked    uint64
	LastUpdateTime int64
	Paused         bool
}

// Clone returns a copy safe to mutate.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// StakeRecord tracks one participant's position.
type StakeRecord struct {
	Owner         [20]byte
	Amount        uint64
	StartTime     int64
	LastClaimTime int64
}

// Clone returns a copy safe to mutate.
func (r *StakeRecord) Clone() *StakeRecord {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// UnlockTime returns the first timestamp at which the principal may be
// withdrawn. It overflows for lock periods near MaxInt64; Unstake compares the
// elapsed time instead.
func (r *StakeRecord) UnlockTime(lockPeriod int64) (int64, error) {
	return checkedAddInt64(r.StartTime, lockPeriod)
}

// UnstakeResult reports what an unstake paid out.
type UnstakeResult struct {
	Principal uint64
	Reward    uint64
}

// Addresses groups the derived program addresses.
type Addresses struct {
	Program [20]byte
	Pool    [20]byte
	Vault   [20]byte
}

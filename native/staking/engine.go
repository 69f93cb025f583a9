package staking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"stakepool/core/events"
	"stakepool/crypto"
)

type engineState interface {
	StakingPoolGet(addr [20]byte) (*Pool, bool, error)
	StakingPoolPut(addr [20]byte, pool *Pool) error
	StakeRecordGet(addr [20]byte) (*StakeRecord, bool, error)
	StakeRecordPut(addr [20]byte, record *StakeRecord) error
	StakeRecordDelete(addr [20]byte) error
}

// tokenLedger moves the staked token between participants and pool custody.
type tokenLedger interface {
	Balance(owner [20]byte, token string) (uint64, error)
	Transfer(from, to [20]byte, token string, amount uint64) error
}

// Engine implements the staking pool state machine. It performs no locking
// and keeps no state of its own: every call reads the records it needs from
// the configured state, validates, and writes the result back. Callers are
// expected to run each call inside a transaction they can discard on error.
type Engine struct {
	state   engineState
	ledger  tokenLedger
	emitter events.Emitter
	nowFn   func() int64

	token     string
	addresses Addresses
}

// NewEngine creates an engine for the program identity and stake token with a
// no-op emitter and the wall clock as time source.
func NewEngine(program [20]byte, token string) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		token:   strings.ToUpper(strings.TrimSpace(token)),
		addresses: Addresses{
			Program: program,
			Pool:    crypto.DeriveProgramAddress(program, []byte(PoolSeed)),
			Vault:   crypto.DeriveProgramAddress(program, []byte(VaultSeed)),
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger used for custody transfers.
func (e *Engine) SetLedger(ledger tokenLedger) { e.ledger = ledger }

// SetNowFunc overrides the time source used by the engine. The function is
// consulted once per operation.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Token returns the stake token symbol.
func (e *Engine) Token() string { return e.token }

// Addresses returns the derived program addresses.
func (e *Engine) Addresses() Addresses { return e.addresses }

// StakeAddress returns the record address for owner.
func (e *Engine) StakeAddress(owner [20]byte) [20]byte {
	return crypto.DeriveProgramAddress(e.addresses.Program, []byte(StakeSeed), owner[:])
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if e.token == "" {
		return errNoToken
	}
	return nil
}

func (e *Engine) loadPool() (*Pool, error) {
	pool, ok, err := e.state.StakingPoolGet(e.addresses.Pool)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, ErrPoolUninitialized
	}
	return pool.Clone(), nil
}

func (e *Engine) loadStake(owner [20]byte) (*StakeRecord, error) {
	record, ok, err := e.state.StakeRecordGet(e.StakeAddress(owner))
	if err != nil {
		return nil, err
	}
	if !ok || record == nil || record.Amount == 0 {
		return nil, ErrNoActiveStake
	}
	return record.Clone(), nil
}

// loadOwnedStake resolves the record of owner and checks caller may act on it.
func (e *Engine) loadOwnedStake(caller, owner [20]byte) (*StakeRecord, error) {
	record, err := e.loadStake(owner)
	if err != nil {
		return nil, err
	}
	if record.Owner != caller {
		return nil, ErrUnauthorized
	}
	return record, nil
}

// accrue computes the reward pending on record at now. A clock behind the last
// claim accrues nothing.
func accrue(record *StakeRecord, rate uint64, now int64) (uint64, int64, error) {
	elapsed, err := checkedSubInt64(now, record.LastClaimTime)
	if err != nil {
		return 0, 0, err
	}
	if elapsed < 0 {
		elapsed = 0
	}
	reward, err := computeReward(record.Amount, rate, elapsed)
	if err != nil {
		return 0, 0, err
	}
	return reward, elapsed, nil
}

// lockElapsed reports whether now - start_time >= lockPeriod. A clock behind
// the start time never unlocks.
func lockElapsed(record *StakeRecord, lockPeriod int64, now int64) bool {
	held, err := checkedSubInt64(now, record.StartTime)
	if err != nil {
		// the gap exceeds the int64 range, so any lock period has passed
		return now > record.StartTime
	}
	if held < 0 {
		return false
	}
	return held >= lockPeriod
}

func settledClaimTime(record *StakeRecord, now int64) int64 {
	if now < record.LastClaimTime {
		return record.LastClaimTime
	}
	return now
}

// reserve returns custody not backing principal, i.e. what rewards may spend.
func (e *Engine) reserve(pool *Pool) (uint64, error) {
	custody, err := e.ledger.Balance(e.addresses.Vault, e.token)
	if err != nil {
		return 0, err
	}
	if custody <= pool.TotalStaked {
		return 0, nil
	}
	return custody - pool.TotalStaked, nil
}

// ensureCustody fails with ErrInsufficientPoolFunds when the custody balance
// cannot cover amount.
func (e *Engine) ensureCustody(amount uint64) error {
	if amount == 0 {
		return nil
	}
	custody, err := e.ledger.Balance(e.addresses.Vault, e.token)
	if err != nil {
		return err
	}
	if custody < amount {
		return fmt.Errorf("%w: payout %d exceeds custody %d", ErrInsufficientPoolFunds, amount, custody)
	}
	return nil
}

func (e *Engine) deposit(from [20]byte, amount uint64) error {
	if err := e.ledger.Transfer(from, e.addresses.Vault, e.token, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) payout(to [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := e.ledger.Transfer(e.addresses.Vault, to, e.token, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}

// InitializePool creates the singleton pool record with caller as authority.
func (e *Engine) InitializePool(caller [20]byte, rewardRate uint64, lockPeriod int64) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	if lockPeriod < 0 {
		return nil, fmt.Errorf("%w: lock period must not be negative", ErrInvalidParameter)
	}
	_, exists, err := e.state.StakingPoolGet(e.addresses.Pool)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyInitialized
	}
	pool := &Pool{
		Authority:      caller,
		RewardRate:     rewardRate,
		LockPeriod:     lockPeriod,
		TotalStaked:    0,
		LastUpdateTime: now,
	}
	if err := e.state.StakingPoolPut(e.addresses.Pool, pool); err != nil {
		return nil, err
	}
	e.emit(events.StakingPoolInitialized{
		Pool:       e.addresses.Pool,
		Authority:  caller,
		RewardRate: rewardRate,
		LockPeriod: lockPeriod,
		Timestamp:  now,
	})
	return pool.Clone(), nil
}

// Stake moves amount from caller into custody and opens or tops up the
// caller's position. A top-up settles pending rewards first and restarts the
// lock period for the whole position.
func (e *Engine) Stake(caller [20]byte, amount uint64) (*StakeRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if pool.Paused {
		return nil, ErrPoolPaused
	}
	newTotal, err := checkedAdd(pool.TotalStaked, amount)
	if err != nil {
		return nil, err
	}

	record, err := e.loadStake(caller)
	topUp := err == nil
	if err != nil && !errors.Is(err, ErrNoActiveStake) {
		return nil, err
	}

	var (
		reward  uint64
		elapsed int64
		updated *StakeRecord
	)
	if topUp {
		reward, elapsed, err = accrue(record, pool.RewardRate, now)
		if err != nil {
			return nil, err
		}
		newAmount, err := checkedAdd(record.Amount, amount)
		if err != nil {
			return nil, err
		}
		if err := e.ensureCustody(reward); err != nil {
			return nil, err
		}
		claimedAt := settledClaimTime(record, now)
		updated = &StakeRecord{
			Owner:         caller,
			Amount:        newAmount,
			StartTime:     claimedAt,
			LastClaimTime: claimedAt,
		}
	} else {
		updated = &StakeRecord{
			Owner:         caller,
			Amount:        amount,
			StartTime:     now,
			LastClaimTime: now,
		}
	}

	if err := e.payout(caller, reward); err != nil {
		return nil, err
	}
	if err := e.deposit(caller, amount); err != nil {
		return nil, err
	}
	if err := e.state.StakeRecordPut(e.StakeAddress(caller), updated); err != nil {
		return nil, err
	}
	pool.TotalStaked = newTotal
	pool.LastUpdateTime = now
	if err := e.state.StakingPoolPut(e.addresses.Pool, pool); err != nil {
		return nil, err
	}

	if topUp {
		e.emit(events.StakingRewardsClaimed{Owner: caller, Reward: reward, Elapsed: elapsed, ClaimedAt: updated.LastClaimTime})
	}
	e.emit(events.StakingStaked{
		Owner:       caller,
		Amount:      amount,
		NewAmount:   updated.Amount,
		TotalStaked: pool.TotalStaked,
		StartTime:   updated.StartTime,
		TopUp:       topUp,
	})
	return updated.Clone(), nil
}

// ClaimRewards pays the reward accrued on owner's position since the last
// claim. Only the owner may claim. A zero reward succeeds and only advances
// the claim timestamp.
func (e *Engine) ClaimRewards(caller, owner [20]byte) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	now := e.now()
	pool, err := e.loadPool()
	if err != nil {
		return 0, err
	}
	record, err := e.loadOwnedStake(caller, owner)
	if err != nil {
		return 0, err
	}
	reward, elapsed, err := accrue(record, pool.RewardRate, now)
	if err != nil {
		return 0, err
	}
	if err := e.ensureCustody(reward); err != nil {
		return 0, err
	}
	if err := e.payout(record.Owner, reward); err != nil {
		return 0, err
	}
	record.LastClaimTime = settledClaimTime(record, now)
	if err := e.state.StakeRecordPut(e.StakeAddress(owner), record); err != nil {
		return 0, err
	}
	e.emit(events.StakingRewardsClaimed{Owner: owner, Reward: reward, Elapsed: elapsed, ClaimedAt: record.LastClaimTime})
	return reward, nil
}

// Unstake settles pending rewards, returns the full principal and closes the
// position. It fails with ErrLockPeriodNotElapsed until lock_period seconds
// have passed since the position's start time.
func (e *Engine) Unstake(caller, owner [20]byte) (*UnstakeResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	record, err := e.loadOwnedStake(caller, owner)
	if err != nil {
		return nil, err
	}
	if !lockElapsed(record, pool.LockPeriod, now) {
		return nil, fmt.Errorf("%w (lock period %ds)", ErrLockPeriodNotElapsed, pool.LockPeriod)
	}
	reward, elapsed, err := accrue(record, pool.RewardRate, now)
	if err != nil {
		return nil, err
	}
	owed, err := checkedAdd(reward, record.Amount)
	if err != nil {
		return nil, err
	}
	if err := e.ensureCustody(owed); err != nil {
		return nil, err
	}
	newTotal, err := checkedSub(pool.TotalStaked, record.Amount)
	if err != nil {
		return nil, err
	}

	if err := e.payout(record.Owner, reward); err != nil {
		return nil, err
	}
	if err := e.payout(record.Owner, record.Amount); err != nil {
		return nil, err
	}
	if err := e.state.StakeRecordDelete(e.StakeAddress(owner)); err != nil {
		return nil, err
	}
	pool.TotalStaked = newTotal
	pool.LastUpdateTime = now
	if err := e.state.StakingPoolPut(e.addresses.Pool, pool); err != nil {
		return nil, err
	}

	e.emit(events.StakingRewardsClaimed{Owner: owner, Reward: reward, Elapsed: elapsed, ClaimedAt: settledClaimTime(record, now)})
	e.emit(events.StakingUnstaked{
		Owner:       owner,
		Principal:   record.Amount,
		Reward:      reward,
		TotalStaked: pool.TotalStaked,
	})
	return &UnstakeResult{Principal: record.Amount, Reward: reward}, nil
}

package events

import (
	"strconv"

	"stakepool/core/types"
	"stakepool/crypto"
)

const (
	// TypeStakingPoolInitialized is emitted once when the pool record is created.
	TypeStakingPoolInitialized = "staking.poolInitialized"
	// TypeStakingPoolUpdated is emitted when the authority changes pool parameters.
	TypeStakingPoolUpdated = "staking.poolUpdated"
	// TypeStakingPaused is emitted when the authority toggles the pause flag.
	TypeStakingPaused = "staking.pauseToggled"
	// TypeStakingFunded is emitted when reward funds enter custody.
	TypeStakingFunded = "staking.rewardsFunded"
	// TypeStakingStaked is emitted for first stakes and top-ups.
	TypeStakingStaked = "staking.staked"
	// TypeStakingRewardsClaimed is emitted whenever rewards are settled, including zero payouts.
	TypeStakingRewardsClaimed = "staking.rewardsClaimed"
	// TypeStakingUnstaked is emitted when a position is withdrawn and its record closed.
	TypeStakingUnstaked = "staking.unstaked"
)

func addressString(raw [20]byte) string {
	return crypto.AddressFromRaw(raw).String()
}

func uintString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func intString(v int64) string {
	return strconv.FormatInt(v, 10)
}

// StakingPoolInitialized captures the initial pool configuration.
type StakingPoolInitialized struct {
	Pool       [20]byte
	Authority  [20]byte
	RewardRate uint64
	LockPeriod int64
	Timestamp  int64
}

// EventType satisfies the Event interface.
func (StakingPoolInitialized) EventType() string { return TypeStakingPoolInitialized }

// Event converts the payload into a broadcastable event.
func (e StakingPoolInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeStakingPoolInitialized,
		Attributes: map[string]string{
			"pool":       addressString(e.Pool),
			"authority":  addressString(e.Authority),
			"rewardRate": uintString(e.RewardRate),
			"lockPeriod": intString(e.LockPeriod),
			"timestamp":  intString(e.Timestamp),
		},
	}
}

// StakingPoolUpdated captures an authority reconfiguration.
type StakingPoolUpdated struct {
	Authority  [20]byte
	RewardRate uint64
	LockPeriod int64
	Timestamp  int64
}

func (StakingPoolUpdated) EventType() string { return TypeStakingPoolUpdated }

func (e StakingPoolUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeStakingPoolUpdated,
		Attributes: map[string]string{
			"authority":  addressString(e.Authority),
			"rewardRate": uintString(e.RewardRate),
			"lockPeriod": intString(e.LockPeriod),
			"timestamp":  intString(e.Timestamp),
		},
	}
}

// StakingPauseToggled records the new pause state.
type StakingPauseToggled struct {
	Authority [20]byte
	Paused    bool
	Timestamp int64
}

func (StakingPauseToggled) EventType() string { return TypeStakingPaused }

func (e StakingPauseToggled) Event() *types.Event {
	return &types.Event{
		Type: TypeStakingPaused,
		Attributes: map[string]string{
			"authority": addressString(e.Authority),
			"paused":    strconv.FormatBool(e.Paused),
			"timestamp": intString(e.Timestamp),
		},
	}
}

// StakingRewardsFunded captures a deposit into the reward reserve.
type StakingRewardsFunded struct {
	Funder  [20]byte
	Amount  uint64
	Reserve uint64
}

func (StakingRewardsFunded) EventType() string { return TypeStakingFunded }

func (e StakingRewardsFunded) Event() *types.Event {
	return &types.Event{
		Type: TypeStakingFunded,
		Attributes: map[string]string{
			"addr":    addressString(e.Funder),
			"amount":  uintString(e.Amount),
			"reserve": uintString(e.Reserve),
		},
	}
}

// StakingStaked captures a deposit into a position.
type StakingStaked struct {
	Owner       [20]byte
	Amount      uint64
	NewAmount   uint64
	TotalStaked uint64
	StartTime   int64
	TopUp       bool
}

func (StakingStaked) EventType() string { return TypeStakingStaked }

func (e StakingStaked) Event() *types.Event {
	return &types.Event{
		Type: TypeStakingStaked,
		Attributes: map[string]string{
			"addr":        addressString(e.Owner),
			"amount":      uintString(e.Amount),
			"newAmount":   uintString(e.NewAmount),
			"totalStaked": uintString(e.TotalStaked),
			"startTime":   intString(e.StartTime),
			"topUp":       strconv.FormatBool(e.TopUp),
		},
	}
}

// StakingRewardsClaimed captures a reward settlement.
type StakingRewardsClaimed struct {
	Owner     [20]byte
	Reward    uint64
	Elapsed   int64
	ClaimedAt int64
}

func (StakingRewardsClaimed) EventType() string { return TypeStakingRewardsClaimed }

func (e StakingRewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeStakingRewardsClaimed,
		Attributes: map[string]string{
			"addr":      addressString(e.Owner),
			"reward":    uintString(e.Reward),
			"elapsed":   intString(e.Elapsed),
			"claimedAt": intString(e.ClaimedAt),
		},
	}
}

// StakingUnstaked captures a full withdrawal.
type StakingUnstaked struct {
	Owner       [20]byte
	Principal   uint64
	Reward      uint64
	TotalStaked uint64
}

func (StakingUnstaked) EventType() string { return TypeStakingUnstaked }

func (e StakingUnstaked) Event() *types.Event {
	return &types.Event{
		Type: TypeStakingUnstaked,
		Attributes: map[string]string{
			"addr":        addressString(e.Owner),
			"principal":   uintString(e.Principal),
			"reward":      uintString(e.Reward),
			"totalStaked": uintString(e.TotalStaked),
		},
	}
}

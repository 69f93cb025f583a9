package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"stakepool/native/staking"
)

// rlp has no signed integers, so timestamps and the lock period are stored
// unsigned. Negative values never reach storage because the engine rejects
// them before writing.

type storedPool struct {
	Authority      [20]byte
	RewardRate     uint64
	LockPeriod     uint64
	TotalStaked    uint64
	LastUpdateTime uint64
	Paused         bool
}

func clampUnix(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func newStoredPool(pool *staking.Pool) *storedPool {
	return &storedPool{
		Authority:      pool.Authority,
		RewardRate:     pool.RewardRate,
		LockPeriod:     clampUnix(pool.LockPeriod),
		TotalStaked:    pool.TotalStaked,
		LastUpdateTime: clampUnix(pool.LastUpdateTime),
		Paused:         pool.Paused,
	}
}

func (s *storedPool) toPool() *staking.Pool {
	return &staking.Pool{
		Authority:      s.Authority,
		RewardRate:     s.RewardRate,
		LockPeriod:     int64(s.LockPeriod),
		TotalStaked:    s.TotalStaked,
		LastUpdateTime: int64(s.LastUpdateTime),
		Paused:         s.Paused,
	}
}

type storedStakeRecord struct {
	Owner         [20]byte
	Amount        uint64
	StartTime     uint64
	LastClaimTime uint64
}

func newStoredStakeRecord(record *staking.StakeRecord) *storedStakeRecord {
	return &storedStakeRecord{
		Owner:         record.Owner,
		Amount:        record.Amount,
		StartTime:     clampUnix(record.StartTime),
		LastClaimTime: clampUnix(record.LastClaimTime),
	}
}

func (s *storedStakeRecord) toStakeRecord() *staking.StakeRecord {
	return &staking.StakeRecord{
		Owner:         s.Owner,
		Amount:        s.Amount,
		StartTime:     int64(s.StartTime),
		LastClaimTime: int64(s.LastClaimTime),
	}
}

// StakingPoolGet loads the pool record stored at addr.
func (tx *Tx) StakingPoolGet(addr [20]byte) (*staking.Pool, bool, error) {
	data, ok, err := tx.get(stakingPoolKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedPool)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("state: decode staking pool: %w", err)
	}
	return stored.toPool(), true, nil
}

// StakingPoolPut writes the pool record at addr.
func (tx *Tx) StakingPoolPut(addr [20]byte, pool *staking.Pool) error {
	if pool == nil {
		return fmt.Errorf("state: nil staking pool")
	}
	encoded, err := rlp.EncodeToBytes(newStoredPool(pool))
	if err != nil {
		return err
	}
	return tx.put(stakingPoolKey(addr), encoded)
}

// StakeRecordGet loads the stake record stored at addr.
func (tx *Tx) StakeRecordGet(addr [20]byte) (*staking.StakeRecord, bool, error) {
	data, ok, err := tx.get(stakeRecordKey(addr))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedStakeRecord)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("state: decode stake record: %w", err)
	}
	return stored.toStakeRecord(), true, nil
}

// StakeRecordPut writes the stake record at addr.
func (tx *Tx) StakeRecordPut(addr [20]byte, record *staking.StakeRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil stake record")
	}
	encoded, err := rlp.EncodeToBytes(newStoredStakeRecord(record))
	if err != nil {
		return err
	}
	return tx.put(stakeRecordKey(addr), encoded)
}

// StakeRecordDelete removes the stake record at addr.
func (tx *Tx) StakeRecordDelete(addr [20]byte) error {
	return tx.delete(stakeRecordKey(addr))
}

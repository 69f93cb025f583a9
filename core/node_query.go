package core

import (
	poolstate "stakepool/core/state"
	"stakepool/crypto"
	"stakepool/native/bank"
	"stakepool/native/staking"
)

func (n *Node) view(fn func(engine *staking.Engine, tx *poolstate.Tx) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	now := n.nowFn()
	return n.state.View(func(tx *poolstate.Tx) error {
		return fn(n.newEngine(tx, nil, now), tx)
	})
}

// Pool returns the pool record.
func (n *Node) Pool() (*staking.Pool, error) {
	var pool *staking.Pool
	err := n.view(func(engine *staking.Engine, _ *poolstate.Tx) error {
		var err error
		pool, err = engine.Pool()
		return err
	})
	return pool, err
}

// StakeOf returns owner's position.
func (n *Node) StakeOf(owner [20]byte) (*staking.StakeRecord, error) {
	var record *staking.StakeRecord
	err := n.view(func(engine *staking.Engine, _ *poolstate.Tx) error {
		var err error
		record, err = engine.StakeOf(owner)
		return err
	})
	return record, err
}

// PreviewRewards returns what a claim by owner would pay at the current time.
func (n *Node) PreviewRewards(owner [20]byte) (uint64, error) {
	var reward uint64
	err := n.view(func(engine *staking.Engine, _ *poolstate.Tx) error {
		var err error
		reward, err = engine.PendingRewards(owner)
		return err
	})
	return reward, err
}

// RewardReserve returns custody available for rewards.
func (n *Node) RewardReserve() (uint64, error) {
	var reserve uint64
	err := n.view(func(engine *staking.Engine, _ *poolstate.Tx) error {
		var err error
		reserve, err = engine.RewardReserve()
		return err
	})
	return reserve, err
}

// Balance returns owner's stake token balance.
func (n *Node) Balance(owner [20]byte) (uint64, error) {
	var balance uint64
	err := n.view(func(_ *staking.Engine, tx *poolstate.Tx) error {
		var err error
		balance, err = bank.NewLedger(tx).Balance(owner, n.token)
		return err
	})
	return balance, err
}

// Nonce returns the nonce the next transaction from addr must carry.
func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	var nonce uint64
	err := n.view(func(_ *staking.Engine, tx *poolstate.Tx) error {
		var err error
		nonce, err = tx.Nonce(addr)
		return err
	})
	return nonce, err
}

// StakeAddress returns the record address of owner's position.
func (n *Node) StakeAddress(owner [20]byte) [20]byte {
	return crypto.DeriveProgramAddress(n.program, []byte(staking.StakeSeed), owner[:])
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stakepool/config"
	"stakepool/core"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/staking"
)

// bootstrapPool creates and funds the pool with the operator key when the
// config asks for it and no pool exists yet. It is a no-op on later starts.
func bootstrapPool(ctx context.Context, node *core.Node, key *crypto.PrivateKey, cfg config.Bootstrap, logger *slog.Logger) error {
	if !cfg.InitializePool {
		return nil
	}
	if _, err := node.Pool(); err == nil {
		logger.Info("pool already initialized, skipping bootstrap")
		return nil
	} else if !errors.Is(err, staking.ErrPoolUninitialized) {
		return err
	}
	operator := key.PubKey().Address().Raw()

	submit := func(tx *types.Transaction) error {
		nonce, err := node.Nonce(operator)
		if err != nil {
			return err
		}
		tx.ChainID = node.ChainID()
		tx.Nonce = nonce
		if err := tx.Sign(key.PrivateKey); err != nil {
			return err
		}
		receipt, err := node.SubmitTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("bootstrap %s: %w", tx.Type, err)
		}
		logger.Info("bootstrap transaction applied", slog.String("op", receipt.Type), slog.String("tx", receipt.TxHash))
		return nil
	}

	if err := submit(&types.Transaction{
		Type:       types.TxTypeInitializePool,
		RewardRate: cfg.RewardRate,
		LockPeriod: cfg.LockPeriodSecs,
	}); err != nil {
		return err
	}
	if cfg.FundRewards > 0 {
		if err := submit(&types.Transaction{Type: types.TxTypeFundRewards, Amount: cfg.FundRewards}); err != nil {
			return err
		}
	}
	return nil
}

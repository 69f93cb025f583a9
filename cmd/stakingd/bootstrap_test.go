package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"stakepool/config"
	"stakepool/core"
	"stakepool/crypto"
	"stakepool/storage"
)

func TestBootstrapPoolInitializesOnce(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	operator := key.PubKey().Address().Raw()

	node, err := core.NewNode(storage.NewMemDB(), core.NodeConfig{ChainID: 9, ProgramSeed: "boot", StakeToken: "STK"})
	require.NoError(t, err)
	require.NoError(t, node.ApplyGenesis(map[[20]byte]uint64{operator: 10_000}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Bootstrap{InitializePool: true, RewardRate: 2, LockPeriodSecs: 30, FundRewards: 4_000}
	require.NoError(t, bootstrapPool(context.Background(), node, key, cfg, logger))

	pool, err := node.Pool()
	require.NoError(t, err)
	require.Equal(t, operator, pool.Authority)
	require.EqualValues(t, 2, pool.RewardRate)
	require.EqualValues(t, 30, pool.LockPeriod)

	reserve, err := node.RewardReserve()
	require.NoError(t, err)
	require.EqualValues(t, 4_000, reserve)

	// A restart must not touch the pool again.
	require.NoError(t, bootstrapPool(context.Background(), node, key, cfg, logger))
	nonce, err := node.Nonce(operator)
	require.NoError(t, err)
	require.EqualValues(t, 2, nonce)
}

func TestBootstrapPoolDisabled(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	node, err := core.NewNode(storage.NewMemDB(), core.NodeConfig{ChainID: 9, ProgramSeed: "boot", StakeToken: "STK"})
	require.NoError(t, err)
	require.NoError(t, bootstrapPool(context.Background(), node, key, config.Bootstrap{}, slog.Default()))
	_, err = node.Pool()
	require.Error(t, err)
}

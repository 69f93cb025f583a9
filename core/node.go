package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	coreerrors "stakepool/core/errors"
	"stakepool/core/events"
	poolstate "stakepool/core/state"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/bank"
	"stakepool/native/staking"
	"stakepool/observability/metrics"
	"stakepool/storage"
)

// Journal persists committed events and receipts outside consensus state.
type Journal interface {
	Append(ctx context.Context, receipt *types.Receipt, evts []*types.Event) error
}

// NodeConfig identifies the deployment a node serves.
type NodeConfig struct {
	ChainID     uint64
	ProgramSeed string
	StakeToken  string
}

// Node is the execution host for the staking program. It verifies and
// orders transactions, runs each one against a state overlay and commits it
// only when the operation succeeds.
type Node struct {
	state     *poolstate.Manager
	chainID   uint64
	program   [20]byte
	token     string
	addresses staking.Addresses

	emitter events.Emitter
	journal Journal
	metrics *metrics.StakingMetrics
	logger  *slog.Logger
	nowFn   func() int64

	mu sync.RWMutex
}

// NewNode opens a node over db.
func NewNode(db storage.Database, cfg NodeConfig) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if cfg.ChainID == 0 {
		return nil, fmt.Errorf("node: chain id required")
	}
	token := bank.NormalizeToken(cfg.StakeToken)
	if token == "" {
		return nil, fmt.Errorf("node: stake token required")
	}
	program := crypto.ProgramID(cfg.ProgramSeed)
	n := &Node{
		state:   poolstate.NewManager(db),
		chainID: cfg.ChainID,
		program: program,
		token:   token,
		emitter: events.NoopEmitter{},
		metrics: metrics.Staking(),
		logger:  slog.Default(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	n.addresses = staking.NewEngine(program, token).Addresses()
	return n, nil
}

// SetEmitter configures where committed events are published.
func (n *Node) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n.emitter = emitter
}

// SetJournal configures the event and receipt journal. Nil disables it.
func (n *Node) SetJournal(journal Journal) { n.journal = journal }

// SetLogger replaces the node logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger != nil {
		n.logger = logger
	}
}

// SetNowFunc overrides the clock. It is read once per transaction.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
}

// ChainID returns the chain id transactions must carry.
func (n *Node) ChainID() uint64 { return n.chainID }

// Token returns the stake token symbol.
func (n *Node) Token() string { return n.token }

// Addresses returns the derived program addresses.
func (n *Node) Addresses() staking.Addresses { return n.addresses }

// newEngine binds a staking engine to one state transaction.
func (n *Node) newEngine(tx *poolstate.Tx, emitter events.Emitter, now int64) *staking.Engine {
	engine := staking.NewEngine(n.program, n.token)
	engine.SetState(tx)
	engine.SetLedger(bank.NewLedger(tx))
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return now })
	return engine
}

// ApplyGenesis credits the configured allocations exactly once. Calling it
// again with a committed genesis is a no-op.
func (n *Node) ApplyGenesis(allocations map[[20]byte]uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Update(func(tx *poolstate.Tx) error {
		applied, err := tx.GenesisApplied()
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
		ledger := bank.NewLedger(tx)
		for addr, amount := range allocations {
			if addr == n.addresses.Vault || addr == n.addresses.Pool {
				return fmt.Errorf("%w: allocation to program address", coreerrors.ErrGenesisConflict)
			}
			if err := ledger.Credit(addr, n.token, amount); err != nil {
				return err
			}
		}
		return tx.MarkGenesisApplied(n.nowFn())
	})
}

func resolveOwner(tx *types.Transaction, sender [20]byte) ([20]byte, error) {
	if len(tx.Owner) == 0 {
		return sender, nil
	}
	var owner [20]byte
	if len(tx.Owner) != len(owner) {
		return owner, coreerrors.ErrInvalidOwner
	}
	copy(owner[:], tx.Owner)
	return owner, nil
}

func uintResult(v uint64) string { return strconv.FormatUint(v, 10) }

func (n *Node) dispatch(engine *staking.Engine, tx *types.Transaction, sender [20]byte) (map[string]string, error) {
	switch tx.Type {
	case types.TxTypeInitializePool:
		pool, err := engine.InitializePool(sender, tx.RewardRate, tx.LockPeriod)
		if err != nil {
			return nil, err
		}
		return map[string]string{"authority": crypto.AddressFromRaw(pool.Authority).String()}, nil
	case types.TxTypeStake:
		record, err := engine.Stake(sender, tx.Amount)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"amount":    uintResult(record.Amount),
			"startTime": strconv.FormatInt(record.StartTime, 10),
		}, nil
	case types.TxTypeClaimRewards:
		owner, err := resolveOwner(tx, sender)
		if err != nil {
			return nil, err
		}
		reward, err := engine.ClaimRewards(sender, owner)
		if err != nil {
			return nil, err
		}
		return map[string]string{"reward": uintResult(reward)}, nil
	case types.TxTypeUnstake:
		owner, err := resolveOwner(tx, sender)
		if err != nil {
			return nil, err
		}
		result, err := engine.Unstake(sender, owner)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"principal": uintResult(result.Principal),
			"reward":    uintResult(result.Reward),
		}, nil
	case types.TxTypeUpdatePool:
		pool, err := engine.UpdatePool(sender, tx.RewardRate, tx.LockPeriod)
		if err != nil {
			return nil, err
		}
		return map[string]string{
			"rewardRate": uintResult(pool.RewardRate),
			"lockPeriod": strconv.FormatInt(pool.LockPeriod, 10),
		}, nil
	case types.TxTypeSetPaused:
		pool, err := engine.SetPaused(sender, tx.Paused)
		if err != nil {
			return nil, err
		}
		return map[string]string{"paused": strconv.FormatBool(pool.Paused)}, nil
	case types.TxTypeFundRewards:
		reserve, err := engine.FundRewards(sender, tx.Amount)
		if err != nil {
			return nil, err
		}
		return map[string]string{"reserve": uintResult(reserve)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", coreerrors.ErrUnsupportedTx, tx.Type)
	}
}

// SubmitTransaction verifies tx and applies it atomically. Rejections that
// happen before execution (signature, chain id, nonce) return an error and no
// receipt. Once executed, a receipt is always returned; a failed operation
// also returns its error, leaves state untouched and does not consume the
// nonce.
func (n *Node) SubmitTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, coreerrors.ErrNilTransaction
	}
	if tx.ChainID != n.chainID {
		return nil, fmt.Errorf("%w: got %d, want %d", coreerrors.ErrInvalidChainID, tx.ChainID, n.chainID)
	}
	if !tx.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", coreerrors.ErrUnsupportedTx, tx.Type)
	}
	fromBytes, err := tx.From()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", coreerrors.ErrInvalidSender, err)
	}
	var sender [20]byte
	copy(sender[:], fromBytes)
	txHash, err := tx.HashHex()
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	start := time.Now()
	now := n.nowFn()
	stateTx := n.state.Begin()
	defer stateTx.Discard()

	expected, err := stateTx.Nonce(sender)
	if err != nil {
		return nil, err
	}
	if tx.Nonce != expected {
		n.metrics.ObserveNonceRejected()
		return nil, fmt.Errorf("%w: got %d, want %d", coreerrors.ErrNonceMismatch, tx.Nonce, expected)
	}

	buffer := &events.Buffer{}
	result, opErr := n.dispatch(n.newEngine(stateTx, buffer, now), tx, sender)
	receipt := &types.Receipt{
		TxHash:    txHash,
		Type:      tx.Type.String(),
		From:      crypto.AddressFromRaw(sender).String(),
		Nonce:     tx.Nonce,
		Success:   opErr == nil,
		Timestamp: now,
		Result:    result,
	}
	if opErr != nil {
		stateTx.Discard()
		receipt.Error = opErr.Error()
		receipt.ErrorCode = staking.Code(opErr)
		n.metrics.ObserveOperation(receipt.Type, receipt.ErrorCode, time.Since(start))
		n.logger.Info("staking operation rejected",
			slog.String("tx", txHash),
			slog.String("op", receipt.Type),
			slog.String("addr", receipt.From),
			slog.String("error", opErr.Error()))
		n.record(ctx, receipt, nil)
		return receipt, opErr
	}

	if err := stateTx.SetNonce(sender, expected+1); err != nil {
		return nil, err
	}
	if err := stateTx.Commit(); err != nil {
		n.metrics.ObserveOperation(receipt.Type, "CommitFailed", time.Since(start))
		return nil, fmt.Errorf("node: commit: %w", err)
	}

	committed := buffer.Events()
	payloads := make([]*types.Event, 0, len(committed))
	for _, evt := range committed {
		if payload := evt.Event(); payload != nil {
			payloads = append(payloads, payload)
		}
	}
	receipt.Events = payloads
	buffer.Flush(n.emitter)
	n.metrics.ObserveOperation(receipt.Type, "", time.Since(start))
	n.logger.Info("staking operation applied",
		slog.String("tx", txHash),
		slog.String("op", receipt.Type),
		slog.String("addr", receipt.From),
		slog.Int("events", len(payloads)))
	n.record(ctx, receipt, payloads)
	return receipt, nil
}

// record journals the receipt. State is already final at this point, so a
// journal error is logged and not returned.
func (n *Node) record(ctx context.Context, receipt *types.Receipt, payloads []*types.Event) {
	if n.journal == nil {
		return
	}
	if err := n.journal.Append(ctx, receipt, payloads); err != nil {
		n.logger.Warn("journal append failed", slog.String("tx", receipt.TxHash), slog.Any("error", err))
	}
}

// IsRejection reports whether err was raised before execution, meaning no
// receipt exists for the transaction.
func IsRejection(err error) bool {
	for _, target := range []error{
		coreerrors.ErrNilTransaction,
		coreerrors.ErrInvalidChainID,
		coreerrors.ErrUnsupportedTx,
		coreerrors.ErrNonceMismatch,
		coreerrors.ErrInvalidSender,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "stakepool/core/errors"
	"stakepool/core/events"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/native/staking"
	"stakepool/storage"
)

const testChainID = 77

type recordingJournal struct {
	mu       sync.Mutex
	receipts []*types.Receipt
	events   []*types.Event
}

func (j *recordingJournal) Append(_ context.Context, receipt *types.Receipt, evts []*types.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.receipts = append(j.receipts, receipt)
	j.events = append(j.events, evts...)
	return nil
}

type collectingEmitter struct {
	types []string
}

func (c *collectingEmitter) Emit(evt events.Event) { c.types = append(c.types, evt.EventType()) }

type account struct {
	key   *crypto.PrivateKey
	addr  [20]byte
	nonce uint64
}

func newAccount(t *testing.T) *account {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return &account{key: key, addr: key.PubKey().Address().Raw()}
}

type nodeHarness struct {
	node    *Node
	db      *storage.MemDB
	journal *recordingJournal
	emitter *collectingEmitter
	now     int64
}

func newNodeHarness(t *testing.T, allocs map[[20]byte]uint64) *nodeHarness {
	t.Helper()
	h := &nodeHarness{
		db:      storage.NewMemDB(),
		journal: &recordingJournal{},
		emitter: &collectingEmitter{},
		now:     1_700_000_000,
	}
	node, err := NewNode(h.db, NodeConfig{ChainID: testChainID, ProgramSeed: "node-test", StakeToken: "stk"})
	require.NoError(t, err)
	node.SetJournal(h.journal)
	node.SetEmitter(h.emitter)
	node.SetNowFunc(func() int64 { return h.now })
	require.NoError(t, node.ApplyGenesis(allocs))
	h.node = node
	return h
}

func (h *nodeHarness) submit(t *testing.T, from *account, tx *types.Transaction) (*types.Receipt, error) {
	t.Helper()
	tx.ChainID = testChainID
	tx.Nonce = from.nonce
	require.NoError(t, tx.Sign(from.key.PrivateKey))
	receipt, err := h.node.SubmitTransaction(context.Background(), tx)
	if err == nil {
		from.nonce++
	}
	return receipt, err
}

func TestNodeScenarioStakeClaimUnstake(t *testing.T) {
	authority := newAccount(t)
	user := newAccount(t)
	h := newNodeHarness(t, map[[20]byte]uint64{
		authority.addr: 1_000_000,
		user.addr:      1000,
	})

	_, err := h.submit(t, authority, &types.Transaction{Type: types.TxTypeInitializePool, RewardRate: 1, LockPeriod: 60})
	require.NoError(t, err)
	_, err = h.submit(t, authority, &types.Transaction{Type: types.TxTypeFundRewards, Amount: 500_000})
	require.NoError(t, err)

	start := h.now
	receipt, err := h.submit(t, user, &types.Transaction{Type: types.TxTypeStake, Amount: 1000})
	require.NoError(t, err)
	require.True(t, receipt.Success)
	pool, err := h.node.Pool()
	require.NoError(t, err)
	require.EqualValues(t, 1000, pool.TotalStaked)

	h.now = start + 2
	preview, err := h.node.PreviewRewards(user.addr)
	require.NoError(t, err)
	require.EqualValues(t, 2000, preview)
	receipt, err = h.submit(t, user, &types.Transaction{Type: types.TxTypeClaimRewards})
	require.NoError(t, err)
	require.Equal(t, "2000", receipt.Result["reward"])
	record, err := h.node.StakeOf(user.addr)
	require.NoError(t, err)
	require.Equal(t, start+2, record.LastClaimTime)

	h.now = start + 59
	receipt, err = h.submit(t, user, &types.Transaction{Type: types.TxTypeUnstake})
	require.ErrorIs(t, err, staking.ErrLockPeriodNotElapsed)
	require.False(t, receipt.Success)
	require.Contains(t, receipt.Error, "Lock period has not ended yet")
	require.Equal(t, "LockPeriodNotElapsed", receipt.ErrorCode)

	h.now = start + 60
	receipt, err = h.submit(t, user, &types.Transaction{Type: types.TxTypeUnstake})
	require.NoError(t, err)
	require.Equal(t, "1000", receipt.Result["principal"])
	require.Equal(t, "58000", receipt.Result["reward"])

	_, err = h.node.StakeOf(user.addr)
	require.ErrorIs(t, err, staking.ErrNoActiveStake)
	pool, err = h.node.Pool()
	require.NoError(t, err)
	require.Zero(t, pool.TotalStaked)

	balance, err := h.node.Balance(user.addr)
	require.NoError(t, err)
	require.EqualValues(t, 1000+2000+58_000, balance)

	reserve, err := h.node.RewardReserve()
	require.NoError(t, err)
	require.EqualValues(t, 500_000-60_000, reserve)

	require.Len(t, h.journal.receipts, 6)
	require.Contains(t, h.emitter.types, events.TypeStakingUnstaked)
}

func TestNodeFailedOperationLeavesStateUntouched(t *testing.T) {
	authority := newAccount(t)
	user := newAccount(t)
	h := newNodeHarness(t, map[[20]byte]uint64{authority.addr: 10, user.addr: 1000})

	_, err := h.submit(t, authority, &types.Transaction{Type: types.TxTypeInitializePool, RewardRate: 1, LockPeriod: 0})
	require.NoError(t, err)
	_, err = h.submit(t, user, &types.Transaction{Type: types.TxTypeStake, Amount: 1000})
	require.NoError(t, err)

	h.now += 5
	snapshot := h.db.Len()
	nonceBefore, err := h.node.Nonce(user.addr)
	require.NoError(t, err)
	emitted := len(h.emitter.types)

	receipt, err := h.submit(t, user, &types.Transaction{Type: types.TxTypeClaimRewards})
	require.ErrorIs(t, err, staking.ErrInsufficientPoolFunds)
	require.False(t, receipt.Success)

	require.Equal(t, snapshot, h.db.Len())
	nonceAfter, err := h.node.Nonce(user.addr)
	require.NoError(t, err)
	require.Equal(t, nonceBefore, nonceAfter)
	require.Len(t, h.emitter.types, emitted)
	record, err := h.node.StakeOf(user.addr)
	require.NoError(t, err)
	require.Equal(t, h.now-5, record.LastClaimTime)
}

func TestNodeRejectsReplayAndWrongChain(t *testing.T) {
	authority := newAccount(t)
	h := newNodeHarness(t, nil)

	tx := &types.Transaction{Type: types.TxTypeInitializePool, ChainID: testChainID, RewardRate: 1}
	require.NoError(t, tx.Sign(authority.key.PrivateKey))
	_, err := h.node.SubmitTransaction(context.Background(), tx)
	require.NoError(t, err)

	_, err = h.node.SubmitTransaction(context.Background(), tx)
	require.ErrorIs(t, err, coreerrors.ErrNonceMismatch)
	require.True(t, IsRejection(err))

	wrong := &types.Transaction{Type: types.TxTypeSetPaused, ChainID: testChainID + 1, Nonce: 1, Paused: true}
	require.NoError(t, wrong.Sign(authority.key.PrivateKey))
	_, err = h.node.SubmitTransaction(context.Background(), wrong)
	require.ErrorIs(t, err, coreerrors.ErrInvalidChainID)

	unsigned := &types.Transaction{Type: types.TxTypeSetPaused, ChainID: testChainID, Nonce: 1}
	_, err = h.node.SubmitTransaction(context.Background(), unsigned)
	require.ErrorIs(t, err, coreerrors.ErrInvalidSender)

	_, err = h.node.SubmitTransaction(context.Background(), nil)
	require.ErrorIs(t, err, coreerrors.ErrNilTransaction)
}

func TestNodeUnauthorizedOwnerOverride(t *testing.T) {
	authority := newAccount(t)
	alice := newAccount(t)
	mallory := newAccount(t)
	h := newNodeHarness(t, map[[20]byte]uint64{alice.addr: 100})

	_, err := h.submit(t, authority, &types.Transaction{Type: types.TxTypeInitializePool, LockPeriod: 0})
	require.NoError(t, err)
	_, err = h.submit(t, alice, &types.Transaction{Type: types.TxTypeStake, Amount: 100})
	require.NoError(t, err)

	receipt, err := h.submit(t, mallory, &types.Transaction{Type: types.TxTypeUnstake, Owner: alice.addr[:]})
	require.ErrorIs(t, err, staking.ErrUnauthorized)
	require.Equal(t, "Unauthorized", receipt.ErrorCode)

	_, err = h.submit(t, mallory, &types.Transaction{Type: types.TxTypeClaimRewards, Owner: []byte{1, 2, 3}})
	require.ErrorIs(t, err, coreerrors.ErrInvalidOwner)

	record, err := h.node.StakeOf(alice.addr)
	require.NoError(t, err)
	require.EqualValues(t, 100, record.Amount)
}

func TestApplyGenesisIsIdempotent(t *testing.T) {
	user := newAccount(t)
	h := newNodeHarness(t, map[[20]byte]uint64{user.addr: 50})
	require.NoError(t, h.node.ApplyGenesis(map[[20]byte]uint64{user.addr: 50}))

	balance, err := h.node.Balance(user.addr)
	require.NoError(t, err)
	require.EqualValues(t, 50, balance)

	db := storage.NewMemDB()
	node, err := NewNode(db, NodeConfig{ChainID: testChainID, ProgramSeed: "node-test", StakeToken: "STK"})
	require.NoError(t, err)
	err = node.ApplyGenesis(map[[20]byte]uint64{node.Addresses().Vault: 1})
	require.ErrorIs(t, err, coreerrors.ErrGenesisConflict)
}

func TestNewNodeValidatesConfig(t *testing.T) {
	_, err := NewNode(nil, NodeConfig{ChainID: 1, StakeToken: "STK"})
	require.Error(t, err)
	_, err = NewNode(storage.NewMemDB(), NodeConfig{StakeToken: "STK"})
	require.Error(t, err)
	_, err = NewNode(storage.NewMemDB(), NodeConfig{ChainID: 1, StakeToken: " "})
	require.Error(t, err)
}

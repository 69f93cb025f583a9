package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/storage/history"
)

type fakeRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type fakeNode struct {
	mu       sync.Mutex
	calls    []string
	txs      []types.Transaction
	auth     []string
	failWith *operationFailure
	events   [][]eventResult
}

func (f *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req fakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Method)
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	reply := func(result interface{}) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": result})
	}
	switch req.Method {
	case "staking_programAddresses":
		reply(programAddresses{ChainID: 4242, Token: "STK"})
	case "staking_getNonce":
		reply(7)
	case "staking_sendTransaction":
		var tx types.Transaction
		_ = json.Unmarshal(req.Params[0], &tx)
		f.txs = append(f.txs, tx)
		hash, _ := tx.HashHex()
		if f.failWith != nil {
			failure := *f.failWith
			failure.TxHash = hash
			failure.Receipt = &types.Receipt{TxHash: hash, Success: false, ErrorCode: failure.Code}
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": 1,
				"error": map[string]interface{}{"code": -32030, "message": "staking: Lock period has not ended yet (lock period 60s)", "data": failure},
			})
			return
		}
		reply(types.Receipt{TxHash: hash, Type: tx.Type.String(), Success: true, Result: map[string]string{"amount": "25"}})
	case "staking_listEvents":
		if len(f.events) == 0 {
			reply([]eventResult{})
			return
		}
		page := f.events[0]
		f.events = f.events[1:]
		reply(page)
	default:
		reply(map[string]string{"method": req.Method})
	}
}

type cliHarness struct {
	cli    *cli
	node   *fakeNode
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	dir    string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	node := &fakeNode{}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	dir := t.TempDir()
	c := newCLI(stdout, stderr)
	c.endpoint = srv.URL
	c.token = "test-token"
	c.historyPath = filepath.Join(dir, "history.db")
	c.keyPath = filepath.Join(dir, "wallet.keystore")
	c.passphrase = func() (string, error) { return "correct horse", nil }
	return &cliHarness{cli: c, node: node, stdout: stdout, stderr: stderr, dir: dir}
}

func (h *cliHarness) generateKey(t *testing.T) string {
	t.Helper()
	if code := h.cli.run([]string{"generate-key"}); code != 0 {
		t.Fatalf("generate-key failed: %s", h.stderr.String())
	}
	key, err := crypto.LoadFromKeystore(h.cli.keyPath, "correct horse")
	if err != nil {
		t.Fatalf("load keystore: %v", err)
	}
	h.stdout.Reset()
	return key.PubKey().Address().String()
}

func TestStakeSignsWithKeystoreAndRecordsHistory(t *testing.T) {
	h := newCLIHarness(t)
	addr := h.generateKey(t)

	if code := h.cli.run([]string{"stake", "1_000"}); code != 0 {
		t.Fatalf("stake failed: %s", h.stderr.String())
	}
	if len(h.node.txs) != 1 {
		t.Fatalf("expected one transaction, got %d", len(h.node.txs))
	}
	tx := h.node.txs[0]
	if tx.Type != types.TxTypeStake || tx.Amount != 1000 || tx.ChainID != 4242 || tx.Nonce != 7 {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	from, err := tx.From()
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	var raw [20]byte
	copy(raw[:], from)
	if crypto.AddressFromRaw(raw).String() != addr {
		t.Fatalf("transaction not signed by keystore key")
	}
	for _, header := range h.node.auth {
		if header != "Bearer test-token" {
			t.Fatalf("expected bearer token on every call, got %q", header)
		}
	}

	store, err := history.Open(h.cli.historyPath)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	entries, err := store.List(context.Background(), addr, 10)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 1 || !entries[0].Success || entries[0].Op != "stake" || entries[0].Result != `{"amount":"25"}` {
		t.Fatalf("unexpected history %+v", entries)
	}
}

func TestFailedUnstakeReportsTaxonomyCode(t *testing.T) {
	h := newCLIHarness(t)
	h.generateKey(t)
	h.node.failWith = &operationFailure{Code: "LockPeriodNotElapsed"}

	if code := h.cli.run([]string{"unstake"}); code != 1 {
		t.Fatalf("expected failure exit code, got %d", code)
	}
	if !strings.Contains(h.stderr.String(), "LockPeriodNotElapsed") || !strings.Contains(h.stderr.String(), "Lock period has not ended yet") {
		t.Fatalf("unexpected stderr: %s", h.stderr.String())
	}

	h.stdout.Reset()
	if code := h.cli.run([]string{"history"}); code != 0 {
		t.Fatalf("history failed: %s", h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), "failed [LockPeriodNotElapsed]") {
		t.Fatalf("history missing failure: %s", h.stdout.String())
	}
}

func TestClaimForOtherOwner(t *testing.T) {
	h := newCLIHarness(t)
	h.generateKey(t)
	other, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	otherAddr := other.PubKey().Address()
	if code := h.cli.run([]string{"claim", "--owner", otherAddr.String()}); code != 0 {
		t.Fatalf("claim failed: %s", h.stderr.String())
	}
	tx := h.node.txs[0]
	if tx.Type != types.TxTypeClaimRewards || !bytes.Equal(tx.Owner, otherAddr.Bytes()) {
		t.Fatalf("unexpected claim transaction %+v", tx)
	}
}

func TestInitAndUpdatePoolFlags(t *testing.T) {
	h := newCLIHarness(t)
	h.generateKey(t)
	if code := h.cli.run([]string{"init", "--rate", "3", "--lock", "600"}); code != 0 {
		t.Fatalf("init failed: %s", h.stderr.String())
	}
	if code := h.cli.run([]string{"update-pool", "--rate", "1", "--lock", "-1"}); code != 1 {
		t.Fatalf("expected negative lock to be rejected")
	}
	if code := h.cli.run([]string{"pause"}); code != 0 {
		t.Fatalf("pause failed: %s", h.stderr.String())
	}
	if len(h.node.txs) != 2 {
		t.Fatalf("expected two transactions, got %d", len(h.node.txs))
	}
	if h.node.txs[0].RewardRate != 3 || h.node.txs[0].LockPeriod != 600 {
		t.Fatalf("unexpected init tx %+v", h.node.txs[0])
	}
	if h.node.txs[1].Type != types.TxTypeSetPaused || !h.node.txs[1].Paused {
		t.Fatalf("unexpected pause tx %+v", h.node.txs[1])
	}
}

func TestStakeRejectsBadAmounts(t *testing.T) {
	h := newCLIHarness(t)
	for _, amount := range []string{"0", "-5", "abc", "18446744073709551616"} {
		if code := h.cli.run([]string{"stake", amount}); code != 1 {
			t.Fatalf("expected %q to be rejected", amount)
		}
	}
	if len(h.node.calls) != 0 {
		t.Fatalf("no RPC calls expected, got %v", h.node.calls)
	}
}

func TestExportEventsPagesThroughJournal(t *testing.T) {
	h := newCLIHarness(t)
	h.node.events = [][]eventResult{
		{
			{Seq: 1, TxHash: "0x01", Type: "staking.staked", Attributes: map[string]string{"addr": "stk1a", "amount": "10"}},
			{Seq: 2, TxHash: "0x02", Type: "staking.rewardsClaimed", Attributes: map[string]string{"addr": "stk1a", "reward": "4"}},
		},
		{
			{Seq: 3, TxHash: "0x03", Type: "staking.unstaked", Attributes: map[string]string{"addr": "stk1a", "principal": "10"}},
		},
	}
	out := filepath.Join(h.dir, "events.parquet")
	if code := h.cli.run([]string{"export-events", "--out", out, "--limit", "2"}); code != 0 {
		t.Fatalf("export failed: %s", h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), "Exported 3 events") {
		t.Fatalf("unexpected output: %s", h.stdout.String())
	}
	row := exportRow(eventResult{Type: "staking.rewardsClaimed", Attributes: map[string]string{"addr": "stk1a", "reward": "4"}})
	if row.Amount != "4" || row.Address != "stk1a" {
		t.Fatalf("unexpected export row %+v", row)
	}
}

func TestGlobalFlags(t *testing.T) {
	c := newCLI(&bytes.Buffer{}, &bytes.Buffer{})
	rest, err := c.applyGlobalFlags([]string{"--rpc", "http://node:1", "balance", "--key=k.json", "addr", "--history", "h.db"})
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	if c.endpoint != "http://node:1" || c.keyPath != "k.json" || c.historyPath != "h.db" {
		t.Fatalf("unexpected cli state %+v", c)
	}
	if strings.Join(rest, " ") != "balance addr" {
		t.Fatalf("unexpected remaining args %v", rest)
	}
	if _, err := c.applyGlobalFlags([]string{"--rpc"}); err == nil {
		t.Fatalf("expected missing value error")
	}
}

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"stakepool/core"
	"stakepool/core/types"
	"stakepool/crypto"
	"stakepool/rpc/middleware"
	"stakepool/storage"
	"stakepool/storage/eventlog"
)

const (
	testChainID   = 31337
	testJWTSecret = "rpc-test-secret"
	testIssuer    = "rpc-tests"
	testAudience  = "unit-tests"
)

type testAccount struct {
	key   *crypto.PrivateKey
	addr  [20]byte
	nonce uint64
}

func newTestAccount(t *testing.T) *testAccount {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testAccount{key: key, addr: key.PubKey().Address().Raw()}
}

func (a *testAccount) String() string { return crypto.AddressFromRaw(a.addr).String() }

type testEnv struct {
	node      *core.Node
	journal   *eventlog.Store
	server    *Server
	now       int64
	authority *testAccount
	alice     *testAccount
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		now:       1_700_000_000,
		authority: newTestAccount(t),
		alice:     newTestAccount(t),
	}
	node, err := core.NewNode(storage.NewMemDB(), core.NodeConfig{ChainID: testChainID, ProgramSeed: "rpc-test", StakeToken: "STK"})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	node.SetNowFunc(func() int64 { return env.now })
	if err := node.ApplyGenesis(map[[20]byte]uint64{
		env.authority.addr: 1_000_000,
		env.alice.addr:     10_000,
	}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	journal, err := eventlog.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })
	node.SetJournal(journal)

	if !cfg.Auth.Enabled {
		cfg.Auth = middleware.AuthConfig{Enabled: true, HMACSecret: testJWTSecret, Issuer: testIssuer, Audience: testAudience}
	}
	server, err := NewServer(node, journal, cfg, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	node.SetEmitter(server.Hub())
	env.node = node
	env.journal = journal
	env.server = server
	return env
}

func signToken(t *testing.T, secret string, expires time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "rpc-test",
		"exp": expires.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

type rpcResult struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func (env *testEnv) post(t *testing.T, body []byte, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) call(t *testing.T, method string, params ...interface{}) (int, *rpcResult) {
	t.Helper()
	return env.callWithToken(t, signToken(t, testJWTSecret, time.Now().Add(time.Hour)), method, params...)
}

func (env *testEnv) callWithToken(t *testing.T, bearer, method string, params ...interface{}) (int, *rpcResult) {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal param: %v", err)
		}
		raw = append(raw, b)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: json.RawMessage("1")})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := env.post(t, body, bearer)
	return rec.Code, decodeRPCResponse(t, rec)
}

func decodeRPCResponse(t *testing.T, rec *httptest.ResponseRecorder) *rpcResult {
	t.Helper()
	var resp rpcResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return &resp
}

func (env *testEnv) sendTx(t *testing.T, from *testAccount, tx *types.Transaction) (int, *rpcResult) {
	t.Helper()
	tx.ChainID = testChainID
	tx.Nonce = from.nonce
	if err := tx.Sign(from.key.PrivateKey); err != nil {
		t.Fatalf("sign: %v", err)
	}
	status, resp := env.call(t, "staking_sendTransaction", tx)
	if resp.Error == nil {
		from.nonce++
	}
	return status, resp
}

func (env *testEnv) mustSend(t *testing.T, from *testAccount, tx *types.Transaction) *types.Receipt {
	t.Helper()
	status, resp := env.sendTx(t, from, tx)
	if resp.Error != nil {
		t.Fatalf("%s failed (%d): %+v", tx.Type, status, resp.Error)
	}
	var receipt types.Receipt
	if err := json.Unmarshal(resp.Result, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if !receipt.Success {
		t.Fatalf("%s receipt not successful: %+v", tx.Type, receipt)
	}
	return &receipt
}

func decodeResult(t *testing.T, resp *rpcResult, dst interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected rpc error: %+v", resp.Error)
	}
	if err := json.Unmarshal(resp.Result, dst); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for !cond() {
		select {
		case <-ctx.Done():
			t.Fatalf("condition not met before timeout")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"stakepool/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, "STK", cfg.StakeToken)
	require.EqualValues(t, defaultChainID, cfg.ChainID)
	require.Equal(t, filepath.Join(dir, "operator.keystore"), cfg.OperatorKeystorePath)
	require.FileExists(t, cfg.OperatorKeystorePath)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.OperatorKeystorePath, reloaded.OperatorKeystorePath)
	require.Equal(t, cfg.ProgramSeed, reloaded.ProgramSeed)
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	alice := crypto.AddressFromRaw([crypto.AddressLength]byte{0x0a}).String()
	contents := `RPCAddress = "127.0.0.1:9000"
DataDir = "./data"
ChainID = 42
ProgramSeed = "pool-a"
StakeToken = " stk "

[rpc]
RequireAuth = true
JWTIssuer = "stakepool"
RateLimitPerSecond = 5.5
RateLimitBurst = 3

[bootstrap]
InitializePool = true
RewardRate = 1
LockPeriod = 60

[[genesis]]
Address = "` + alice + `"
Amount = 5000
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.RPCAddress)
	require.EqualValues(t, 42, cfg.ChainID)
	require.Equal(t, "STK", cfg.StakeToken)
	require.True(t, cfg.RPC.RequireAuth)
	require.Equal(t, 5.5, cfg.RPC.RateLimitPerSecond)
	require.Equal(t, 3, cfg.RPC.RateLimitBurst)
	require.True(t, cfg.Bootstrap.InitializePool)
	require.EqualValues(t, 60, cfg.Bootstrap.LockPeriodSecs)
	require.Equal(t, filepath.Join("data", "events.db"), cfg.EventLogDSN)

	allocs, err := cfg.GenesisAllocations()
	require.NoError(t, err)
	require.EqualValues(t, 5000, allocs[[crypto.AddressLength]byte{0x0a}])
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	contents := `rpcAddress: ":7000"
chainId: 9
stakeToken: gov
eventLogDSN: "postgres://stake@localhost/events"
telemetry:
  traces: true
genesis:
  - address: "0x0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a0a"
    amount: 10
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.RPCAddress)
	require.Equal(t, "GOV", cfg.StakeToken)
	require.True(t, cfg.Telemetry.Traces)
	require.Equal(t, "postgres://stake@localhost/events", cfg.EventLogDSN)
	require.Len(t, cfg.Genesis, 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "operatorKeystorePath")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "ValidatorKey"))
}

func TestValidateGenesis(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	addr := crypto.AddressFromRaw([crypto.AddressLength]byte{0x01}).String()

	cfg.Genesis = []Allocation{{Address: addr, Amount: 0}}
	require.Error(t, cfg.Validate())

	cfg.Genesis = []Allocation{{Address: addr, Amount: 1}, {Address: addr, Amount: 2}}
	require.ErrorContains(t, cfg.Validate(), "duplicate")

	cfg.Genesis = []Allocation{{Address: "not-an-address", Amount: 1}}
	require.Error(t, cfg.Validate())

	cfg.Genesis = nil
	cfg.Bootstrap.LockPeriodSecs = -1
	require.Error(t, cfg.Validate())
}

func TestJWTSecretFromEnv(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	t.Setenv("STAKEPOOL_RPC_JWT_SECRET", " s3cret ")
	require.Equal(t, "s3cret", cfg.JWTSecret())
}

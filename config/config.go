package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"stakepool/crypto"
)

const (
	defaultProgramSeed = "stakepool-local"
	defaultStakeToken  = "STK"
	defaultChainID     = 1337
)

type Config struct {
	RPCAddress           string       `toml:"RPCAddress" yaml:"rpcAddress"`
	DataDir              string       `toml:"DataDir" yaml:"dataDir"`
	Environment          string       `toml:"Environment" yaml:"environment"`
	ChainID              uint64       `toml:"ChainID" yaml:"chainId"`
	ProgramSeed          string       `toml:"ProgramSeed" yaml:"programSeed"`
	StakeToken           string       `toml:"StakeToken" yaml:"stakeToken"`
	EventLogDSN          string       `toml:"EventLogDSN" yaml:"eventLogDSN"`
	OperatorKeystorePath string       `toml:"OperatorKeystorePath" yaml:"operatorKeystorePath"`
	OperatorPassphrase   string       `toml:"-" yaml:"-"`
	RPC                  RPC          `toml:"rpc" yaml:"rpc"`
	Logging              Logging      `toml:"logging" yaml:"logging"`
	Telemetry            Telemetry    `toml:"telemetry" yaml:"telemetry"`
	Bootstrap            Bootstrap    `toml:"bootstrap" yaml:"bootstrap"`
	Genesis              []Allocation `toml:"genesis" yaml:"genesis"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load loads the configuration from the given path. TOML is the default
// format; a .yaml or .yml extension selects YAML. A missing file is created
// with defaults and a fresh operator keystore.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: unknown key %s in %s", undecoded[0].String(), path)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8545"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./stakepool-data"
	}
	if c.ChainID == 0 {
		c.ChainID = defaultChainID
	}
	if strings.TrimSpace(c.ProgramSeed) == "" {
		c.ProgramSeed = defaultProgramSeed
	}
	c.StakeToken = strings.ToUpper(strings.TrimSpace(c.StakeToken))
	if c.StakeToken == "" {
		c.StakeToken = defaultStakeToken
	}
	if strings.TrimSpace(c.EventLogDSN) == "" {
		c.EventLogDSN = filepath.Join(c.DataDir, "events.db")
	}
	if c.RPC.ReadTimeoutSecs <= 0 {
		c.RPC.ReadTimeoutSecs = 15
	}
	if c.RPC.WriteTimeoutSecs <= 0 {
		c.RPC.WriteTimeoutSecs = 15
	}
	if c.RPC.IdleTimeoutSecs <= 0 {
		c.RPC.IdleTimeoutSecs = 60
	}
	if c.RPC.JWTSecretEnv == "" {
		c.RPC.JWTSecretEnv = "STAKEPOOL_RPC_JWT_SECRET"
	}
	if c.RPC.RateLimitPerSecond <= 0 {
		c.RPC.RateLimitPerSecond = 20
	}
	if c.RPC.RateLimitBurst <= 0 {
		c.RPC.RateLimitBurst = 40
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) applyEnv() {
	if env := strings.TrimSpace(os.Getenv("STAKEPOOL_ENV")); env != "" {
		c.Environment = env
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		c.Telemetry.Endpoint = endpoint
	}
	if headers := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); headers != "" {
		c.Telemetry.Headers = headers
	}
	c.OperatorPassphrase = os.Getenv("STAKEPOOL_OPERATOR_PASSPHRASE")
}

// JWTSecret resolves the RPC signing secret from the configured variable.
func (c *Config) JWTSecret() string {
	return strings.TrimSpace(os.Getenv(c.RPC.JWTSecretEnv))
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, cfg.OperatorPassphrase); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OperatorKeystorePath != keystorePath {
		cfg.OperatorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{Genesis: []Allocation{}}
	cfg.applyDefaults()
	cfg.applyEnv()

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, cfg.OperatorPassphrase); err != nil {
		return nil, err
	}
	cfg.OperatorKeystorePath = keystorePath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}

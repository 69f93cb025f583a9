package config

// RPC controls the JSON-RPC listener.
type RPC struct {
	ReadTimeoutSecs  int `toml:"ReadTimeout" yaml:"readTimeout"`
	WriteTimeoutSecs int `toml:"WriteTimeout" yaml:"writeTimeout"`
	IdleTimeoutSecs  int `toml:"IdleTimeout" yaml:"idleTimeout"`
	// RequireAuth gates staking_sendTransaction behind a bearer JWT.
	RequireAuth  bool   `toml:"RequireAuth" yaml:"requireAuth"`
	JWTSecretEnv string `toml:"JWTSecretEnv" yaml:"jwtSecretEnv"`
	JWTIssuer    string `toml:"JWTIssuer" yaml:"jwtIssuer"`
	JWTAudience  string `toml:"JWTAudience" yaml:"jwtAudience"`
	// Per client IP.
	RateLimitPerSecond float64  `toml:"RateLimitPerSecond" yaml:"rateLimitPerSecond"`
	RateLimitBurst     int      `toml:"RateLimitBurst" yaml:"rateLimitBurst"`
	AllowedOrigins     []string `toml:"AllowedOrigins" yaml:"allowedOrigins"`
}

// Logging controls structured log output.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
}

// Allocation credits an account with stake tokens at genesis.
type Allocation struct {
	Address string `toml:"Address" yaml:"address"`
	Amount  uint64 `toml:"Amount" yaml:"amount"`
}

// Bootstrap lets the node create the pool on first start, signed by the
// operator key.
type Bootstrap struct {
	InitializePool bool   `toml:"InitializePool" yaml:"initializePool"`
	RewardRate     uint64 `toml:"RewardRate" yaml:"rewardRate"`
	LockPeriodSecs int64  `toml:"LockPeriod" yaml:"lockPeriod"`
	FundRewards    uint64 `toml:"FundRewards" yaml:"fundRewards"`
}

package config

import (
	"fmt"
	"strings"

	"stakepool/crypto"
)

// Validate rejects configurations the node cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("config: ChainID must be non-zero")
	}
	if strings.TrimSpace(c.StakeToken) == "" {
		return fmt.Errorf("config: StakeToken required")
	}
	if c.Bootstrap.LockPeriodSecs < 0 {
		return fmt.Errorf("config: bootstrap.LockPeriod must not be negative")
	}
	if c.RPC.RateLimitBurst < 1 {
		return fmt.Errorf("config: rpc.RateLimitBurst must be positive")
	}
	seen := make(map[[crypto.AddressLength]byte]struct{}, len(c.Genesis))
	for i, alloc := range c.Genesis {
		addr, err := crypto.ParseAddress(alloc.Address)
		if err != nil {
			return fmt.Errorf("config: genesis[%d]: %w", i, err)
		}
		if alloc.Amount == 0 {
			return fmt.Errorf("config: genesis[%d]: amount must be positive", i)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("config: genesis[%d]: duplicate address %s", i, alloc.Address)
		}
		seen[addr] = struct{}{}
	}
	return nil
}

// GenesisAllocations decodes the configured allocations.
func (c *Config) GenesisAllocations() (map[[crypto.AddressLength]byte]uint64, error) {
	out := make(map[[crypto.AddressLength]byte]uint64, len(c.Genesis))
	for i, alloc := range c.Genesis {
		addr, err := crypto.ParseAddress(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("config: genesis[%d]: %w", i, err)
		}
		out[addr] = alloc.Amount
	}
	return out, nil
}

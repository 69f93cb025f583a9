package bank

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance is returned when the sender cannot cover a transfer.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrBalanceOverflow is returned when a credit would exceed the token denomination.
	ErrBalanceOverflow = errors.New("bank: balance overflow")
	errNilState        = errors.New("bank: state not configured")
	errEmptyToken      = errors.New("bank: token symbol required")
)

type balanceState interface {
	TokenBalanceGet(owner [20]byte, token string) (uint64, error)
	TokenBalancePut(owner [20]byte, token string, amount uint64) error
}

// Ledger moves fungible token balances held in state. It is the transfer
// primitive the staking program relies on for custody.
type Ledger struct {
	state balanceState
}

// NewLedger wraps the provided state.
func NewLedger(state balanceState) *Ledger {
	return &Ledger{state: state}
}

// NormalizeToken canonicalises a token symbol.
func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func (l *Ledger) check(token string) (string, error) {
	if l == nil || l.state == nil {
		return "", errNilState
	}
	normalized := NormalizeToken(token)
	if normalized == "" {
		return "", errEmptyToken
	}
	return normalized, nil
}

// Balance returns owner's balance of token.
func (l *Ledger) Balance(owner [20]byte, token string) (uint64, error) {
	normalized, err := l.check(token)
	if err != nil {
		return 0, err
	}
	return l.state.TokenBalanceGet(owner, normalized)
}

// Credit mints amount of token to owner. It is only used for genesis
// allocations.
func (l *Ledger) Credit(owner [20]byte, token string, amount uint64) error {
	normalized, err := l.check(token)
	if err != nil {
		return err
	}
	current, err := l.state.TokenBalanceGet(owner, normalized)
	if err != nil {
		return err
	}
	next, err := add(current, amount)
	if err != nil {
		return err
	}
	return l.state.TokenBalancePut(owner, normalized, next)
}

// Transfer moves amount of token from one owner to another. Zero transfers
// are no-ops.
func (l *Ledger) Transfer(from, to [20]byte, token string, amount uint64) error {
	normalized, err := l.check(token)
	if err != nil {
		return err
	}
	if amount == 0 || from == to {
		return nil
	}
	fromBalance, err := l.state.TokenBalanceGet(from, normalized)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, fromBalance, amount)
	}
	toBalance, err := l.state.TokenBalanceGet(to, normalized)
	if err != nil {
		return err
	}
	credited, err := add(toBalance, amount)
	if err != nil {
		return err
	}
	if err := l.state.TokenBalancePut(from, normalized, fromBalance-amount); err != nil {
		return err
	}
	return l.state.TokenBalancePut(to, normalized, credited)
}

func add(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, ErrBalanceOverflow
	}
	return sum.Uint64(), nil
}

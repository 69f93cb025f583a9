package staking

import "errors"

var (
	errNilState  = errors.New("staking engine: state not configured")
	errNilLedger = errors.New("staking engine: token ledger not configured")
	errNoToken   = errors.New("staking engine: stake token not configured")
)

// Errors surfaced to callers. They are never retried by the engine; the host
// discards every pending write when one is returned.
var (
	ErrAlreadyInitialized    = errors.New("staking: pool already initialized")
	ErrPoolUninitialized     = errors.New("staking: pool not initialized")
	ErrInvalidParameter      = errors.New("staking: invalid parameter")
	ErrInvalidAmount         = errors.New("staking: amount must be positive")
	ErrUnauthorized          = errors.New("staking: caller not authorized")
	ErrNoActiveStake         = errors.New("staking: no active stake")
	ErrLockPeriodNotElapsed  = errors.New("staking: Lock period has not ended yet")
	ErrArithmeticOverflow    = errors.New("staking: Arithmetic overflow occurred")
	ErrInsufficientPoolFunds = errors.New("staking: insufficient pool funds")
	ErrTransferFailed        = errors.New("staking: token transfer failed")
	ErrPoolPaused            = errors.New("staking: pool paused")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrPoolUninitialized, "PoolUninitialized"},
	{ErrInvalidParameter, "InvalidParameter"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrNoActiveStake, "NoActiveStake"},
	{ErrLockPeriodNotElapsed, "LockPeriodNotElapsed"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrInsufficientPoolFunds, "InsufficientPoolFunds"},
	{ErrTransferFailed, "TransferFailed"},
	{ErrPoolPaused, "PoolPaused"},
}

// Code returns the stable taxonomy name for err, or an empty string when err
// is not a staking error.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}

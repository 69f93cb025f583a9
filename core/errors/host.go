package errors

import stderrors "errors"

// Errors raised by the node before an operation reaches the staking engine.
// None of them touch state.
var (
	ErrNilTransaction  = stderrors.New("node: transaction required")
	ErrInvalidChainID  = stderrors.New("node: transaction chain id mismatch")
	ErrUnsupportedTx   = stderrors.New("node: unsupported transaction type")
	ErrNonceMismatch   = stderrors.New("node: unexpected nonce")
	ErrInvalidOwner    = stderrors.New("node: owner must be a 20-byte address")
	ErrInvalidSender   = stderrors.New("node: could not recover sender")
	ErrGenesisConflict = stderrors.New("node: genesis already applied")
)

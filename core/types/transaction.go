package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeInitializePool TxType = 0x01 // Create the pool; sender becomes authority
	TxTypeStake          TxType = 0x02 // Deposit into the sender's position
	TxTypeClaimRewards   TxType = 0x03 // Pay out accrued rewards
	TxTypeUnstake        TxType = 0x04 // Withdraw principal once unlocked
	TxTypeUpdatePool     TxType = 0x05 // Authority changes rate and lock period
	TxTypeSetPaused      TxType = 0x06 // Authority toggles new stakes
	TxTypeFundRewards    TxType = 0x07 // Top up the reward reserve
)

var txTypeNames = map[TxType]string{
	TxTypeInitializePool: "initializePool",
	TxTypeStake:          "stake",
	TxTypeClaimRewards:   "claimRewards",
	TxTypeUnstake:        "unstake",
	TxTypeUpdatePool:     "updatePool",
	TxTypeSetPaused:      "setPaused",
	TxTypeFundRewards:    "fundRewards",
}

// String returns the operation name.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Valid reports whether the type names a known operation.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

// ParseTxType resolves an operation name.
func ParseTxType(name string) (TxType, error) {
	trimmed := strings.TrimSpace(name)
	for t, n := range txTypeNames {
		if strings.EqualFold(n, trimmed) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("types: unknown transaction type %q", name)
}

var (
	ErrMissingSignature = errors.New("types: transaction not signed")
	ErrInvalidSignature = errors.New("types: invalid transaction signature")
)

// Transaction is a signed request to run one staking operation. Fields that
// an operation does not use are left at their zero value.
type Transaction struct {
	Type       TxType `json:"type"`
	ChainID    uint64 `json:"chainId"`
	Nonce      uint64 `json:"nonce"`
	Amount     uint64 `json:"amount,omitempty"`
	RewardRate uint64 `json:"rewardRate,omitempty"`
	LockPeriod int64  `json:"lockPeriod,omitempty"`
	Paused     bool   `json:"paused,omitempty"`
	// Owner selects the position for claim and unstake. Empty means the sender.
	Owner []byte `json:"owner,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from []byte
}

// signingPayload is what Hash commits to. The signature is excluded.
type signingPayload struct {
	Type       TxType
	ChainID    uint64
	Nonce      uint64
	Amount     uint64
	RewardRate uint64
	LockPeriod int64
	Paused     bool
	Owner      []byte
}

// Hash returns the digest that is signed.
func (tx *Transaction) Hash() ([]byte, error) {
	b, err := json.Marshal(signingPayload{
		Type:       tx.Type,
		ChainID:    tx.ChainID,
		Nonce:      tx.Nonce,
		Amount:     tx.Amount,
		RewardRate: tx.RewardRate,
		LockPeriod: tx.LockPeriod,
		Paused:     tx.Paused,
		Owner:      tx.Owner,
	})
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

// HashHex returns the 0x-prefixed transaction hash.
func (tx *Transaction) HashHex() (string, error) {
	hash, err := tx.Hash()
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(hash), nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the sender address from the signature.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, ErrMissingSignature
	}
	if len(tx.R.Bytes()) > 32 || len(tx.S.Bytes()) > 32 || !tx.V.IsUint64() || tx.V.Uint64() < 27 || tx.V.Uint64() > 28 {
		return nil, ErrInvalidSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}

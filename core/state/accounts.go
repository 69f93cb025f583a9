package state

import (
	"encoding/binary"
	"fmt"
)

func decodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("state: malformed counter of %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func (tx *Tx) getUint64(key []byte) (uint64, error) {
	data, ok, err := tx.get(key)
	if err != nil || !ok {
		return 0, err
	}
	return decodeUint64(data)
}

// TokenBalanceGet returns the balance of symbol held by addr.
func (tx *Tx) TokenBalanceGet(addr [20]byte, symbol string) (uint64, error) {
	return tx.getUint64(balanceKey(addr, symbol))
}

// TokenBalancePut sets the balance of symbol held by addr. Zero balances are
// removed from the store.
func (tx *Tx) TokenBalancePut(addr [20]byte, symbol string, amount uint64) error {
	key := balanceKey(addr, symbol)
	if amount == 0 {
		return tx.delete(key)
	}
	return tx.put(key, encodeUint64(amount))
}

// Nonce returns the next transaction nonce expected from addr.
func (tx *Tx) Nonce(addr [20]byte) (uint64, error) {
	return tx.getUint64(nonceKey(addr))
}

// SetNonce stores the next transaction nonce expected from addr.
func (tx *Tx) SetNonce(addr [20]byte, nonce uint64) error {
	return tx.put(nonceKey(addr), encodeUint64(nonce))
}

// GenesisApplied reports whether genesis allocations were written.
func (tx *Tx) GenesisApplied() (bool, error) {
	_, ok, err := tx.get(genesisMarkerKey)
	return ok, err
}

// MarkGenesisApplied records the genesis timestamp.
func (tx *Tx) MarkGenesisApplied(timestamp int64) error {
	return tx.put(genesisMarkerKey, encodeUint64(clampUnix(timestamp)))
}

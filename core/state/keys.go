package state

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	stakingPoolPrefix   = []byte("staking/pool/")
	stakingRecordPrefix = []byte("staking/stake/")
	balancePrefix       = []byte("balance:")
	noncePrefix         = []byte("nonce:")
	genesisMarkerKey    = ethcrypto.Keccak256([]byte("meta/genesis"))
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

func stakingPoolKey(addr [20]byte) []byte {
	return prefixedKey(stakingPoolPrefix, addr[:])
}

func stakeRecordKey(addr [20]byte) []byte {
	return prefixedKey(stakingRecordPrefix, addr[:])
}

func balanceKey(addr [20]byte, symbol string) []byte {
	return prefixedKey(balancePrefix, []byte(symbol), []byte{':'}, addr[:])
}

func nonceKey(addr [20]byte) []byte {
	return prefixedKey(noncePrefix, addr[:])
}

package crypto

import (
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// derivationMarker separates program-derived identities from key-backed ones.
// No secp256k1 key hashes to an address built with this suffix, so nobody can
// sign for a derived address.
var derivationMarker = []byte("ProgramDerivedAddress")

// ProgramID derives the program identity from a deployment seed.
func ProgramID(seed string) [AddressLength]byte {
	var out [AddressLength]byte
	hash := crypto.Keccak256([]byte("program:"), []byte(strings.TrimSpace(seed)))
	copy(out[:], hash[len(hash)-AddressLength:])
	return out
}

// DeriveProgramAddress deterministically maps (program, seeds...) to an
// address. Each seed is length-prefixed so ("ab","c") and ("a","bc") differ.
func DeriveProgramAddress(program [AddressLength]byte, seeds ...[]byte) [AddressLength]byte {
	parts := make([][]byte, 0, len(seeds)*2+2)
	for _, seed := range seeds {
		parts = append(parts, []byte{byte(len(seed))}, seed)
	}
	parts = append(parts, program[:], derivationMarker)
	hash := crypto.Keccak256(parts...)
	var out [AddressLength]byte
	copy(out[:], hash[len(hash)-AddressLength:])
	return out
}

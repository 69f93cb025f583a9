package crypto

import (
	"bytes"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	addr := key.PubKey().Address()
	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, string(StakePrefix)+"1"))

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr.Bytes(), decoded.Bytes())
	require.Equal(t, StakePrefix, decoded.Prefix())
}

func TestParseAddressAcceptsHexAndBech32(t *testing.T) {
	raw := [AddressLength]byte{0x01, 0x02, 0x03}
	fromHex, err := ParseAddress("0x" + hex.EncodeToString(raw[:]))
	require.NoError(t, err)
	require.Equal(t, raw, fromHex)

	fromBech, err := ParseAddress(AddressFromRaw(raw).String())
	require.NoError(t, err)
	require.Equal(t, raw, fromBech)

	_, err = ParseAddress("0x1234")
	require.Error(t, err)
	_, err = ParseAddress("  ")
	require.Error(t, err)
}

func TestDeriveProgramAddressIsDeterministic(t *testing.T) {
	program := ProgramID("stakepool-local")
	owner := [AddressLength]byte{0xaa}

	first := DeriveProgramAddress(program, []byte("staking_info"), owner[:])
	second := DeriveProgramAddress(program, []byte("staking_info"), owner[:])
	require.Equal(t, first, second)

	otherOwner := [AddressLength]byte{0xbb}
	require.NotEqual(t, first, DeriveProgramAddress(program, []byte("staking_info"), otherOwner[:]))
	require.NotEqual(t, first, DeriveProgramAddress(ProgramID("other"), []byte("staking_info"), owner[:]))

	// seed boundaries are part of the preimage
	require.NotEqual(t,
		DeriveProgramAddress(program, []byte("ab"), []byte("c")),
		DeriveProgramAddress(program, []byte("a"), []byte("bc")),
	)
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keys", "user.json")
	require.NoError(t, SaveToKeystore(path, key, "correct horse"))

	loaded, err := LoadFromKeystore(path, "correct horse")
	require.NoError(t, err)
	require.True(t, bytes.Equal(key.Bytes(), loaded.Bytes()))

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}

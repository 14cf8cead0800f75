package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveEthereumAddressKnownKey(t *testing.T) {
	// Secret scalar 1 has a well-known account address.
	sk := make([]byte, SecretKeyLength)
	sk[SecretKeyLength-1] = 1
	keypair, err := NewKeyPairFromSecretBytes(sk)
	require.NoError(t, err)

	assert.Equal(t, "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf", keypair.Address().String())
}

func TestNewEthereumAddressFromHex(t *testing.T) {
	want := "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"

	withPrefix, err := NewEthereumAddressFromHex(want)
	require.NoError(t, err)
	assert.Equal(t, want, withPrefix.String())

	withoutPrefix, err := NewEthereumAddressFromHex(want[2:])
	require.NoError(t, err)
	assert.True(t, withPrefix.Equal(withoutPrefix))

	_, err = NewEthereumAddressFromHex("0x1234")
	assert.Error(t, err, "wrong length")

	_, err = NewEthereumAddressFromHex("zz5f4552091a69125d5dfcb7b8c2659029395bdf")
	assert.Error(t, err, "not hex")
}

func TestNewEthereumAddressFromBytes(t *testing.T) {
	data := make([]byte, 20)
	data[0] = 0xab
	addr, err := NewEthereumAddressFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, data, addr.Bytes())

	_, err = NewEthereumAddressFromBytes(make([]byte, 19))
	assert.Error(t, err)
}

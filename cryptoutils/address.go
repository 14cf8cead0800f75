package cryptoutils

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// EthereumAddress is a 20-byte Ethereum account address.
type EthereumAddress [20]byte

// NewEthereumAddressFromBytes creates an address from a 20-byte slice.
func NewEthereumAddressFromBytes(data []byte) (EthereumAddress, error) {
	if len(data) != 20 {
		return EthereumAddress{}, errors.New("invalid address length: must be 20 bytes")
	}
	var addr EthereumAddress
	copy(addr[:], data)
	return addr, nil
}

// NewEthereumAddressFromHex creates an address from a 40-character hexstring,
// with or without the 0x prefix.
func NewEthereumAddressFromHex(addrHex string) (EthereumAddress, error) {
	clean := strings.TrimPrefix(addrHex, "0x")
	if len(clean) != 40 {
		return EthereumAddress{}, errors.New("invalid address length: hex string must be 40 characters")
	}
	data, err := hex.DecodeString(clean)
	if err != nil {
		return EthereumAddress{}, fmt.Errorf("invalid address hex: %w", err)
	}
	return NewEthereumAddressFromBytes(data)
}

// DeriveEthereumAddress derives the account address for a public key:
// keccak256 of the uncompressed point without its type prefix, low 20 bytes.
func DeriveEthereumAddress(pub *ecdsa.PublicKey) EthereumAddress {
	return EthereumAddress(crypto.PubkeyToAddress(*pub))
}

// String returns the 0x-prefixed lowercase hex representation.
func (addr EthereumAddress) String() string {
	return "0x" + hex.EncodeToString(addr[:])
}

// Bytes returns the raw 20-byte address.
func (addr EthereumAddress) Bytes() []byte {
	return addr[:]
}

// Equal compares two addresses for equality.
func (addr EthereumAddress) Equal(other EthereumAddress) bool {
	return addr == other
}

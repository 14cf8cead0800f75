package cryptoutils

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoSecretKey is returned when a signing operation is attempted on a
// keypair that only carries a public key.
var ErrNoSecretKey = errors.New("keypair has no secret key")

const (
	// CompressedPublicKeyLength is the SEC1 compressed encoding length.
	CompressedPublicKeyLength = 33

	// UncompressedPublicKeyLength is the SEC1 uncompressed encoding length.
	UncompressedPublicKeyLength = 65

	// SecretKeyLength is the scalar encoding length.
	SecretKeyLength = 32

	personalMessagePrefix = "\x19Ethereum Signed Message:\n"
)

// Secp256k1KeyPair wraps an avatar's secp256k1 keypair. The public key is
// always present; the secret key may be missing when the pair was parsed from
// a public key, in which case the pair can verify and recover but never sign.
// Immutable after construction except for RefreshPublicKey.
type Secp256k1KeyPair struct {
	pub *ecdsa.PublicKey
	sec *ecdsa.PrivateKey
}

// GenerateKeyPair creates a fresh keypair from the OS entropy source.
func GenerateKeyPair() (*Secp256k1KeyPair, error) {
	sec, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate secp256k1 key: %w", err)
	}
	return &Secp256k1KeyPair{pub: &sec.PublicKey, sec: sec}, nil
}

// NewKeyPairFromPublicBytes parses a compressed (33-byte) or uncompressed
// (65-byte) public key encoding. The resulting pair cannot sign.
func NewKeyPairFromPublicBytes(data []byte) (*Secp256k1KeyPair, error) {
	var (
		pub *ecdsa.PublicKey
		err error
	)
	switch len(data) {
	case CompressedPublicKeyLength:
		pub, err = crypto.DecompressPubkey(data)
	case UncompressedPublicKeyLength:
		pub, err = crypto.UnmarshalPubkey(data)
	default:
		return nil, fmt.Errorf("invalid public key length %d: must be %d or %d bytes",
			len(data), CompressedPublicKeyLength, UncompressedPublicKeyLength)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	return &Secp256k1KeyPair{pub: pub}, nil
}

// NewKeyPairFromPublicHex parses a public key hexstring, with or without the
// 0x prefix. The resulting pair cannot sign.
func NewKeyPairFromPublicHex(pkHex string) (*Secp256k1KeyPair, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(pkHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	return NewKeyPairFromPublicBytes(data)
}

// NewKeyPairFromSecretBytes parses a 32-byte secret scalar and derives the
// matching public key. Out-of-range scalars are rejected.
func NewKeyPairFromSecretBytes(data []byte) (*Secp256k1KeyPair, error) {
	if len(data) != SecretKeyLength {
		return nil, fmt.Errorf("invalid secret key length %d: must be %d bytes", len(data), SecretKeyLength)
	}
	sec, err := crypto.ToECDSA(data)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key scalar: %w", err)
	}
	return &Secp256k1KeyPair{pub: &sec.PublicKey, sec: sec}, nil
}

// NewKeyPairFromSecretHex parses a secret key hexstring ([a-f0-9]{64}, with
// or without the 0x prefix) and derives the matching public key.
func NewKeyPairFromSecretHex(skHex string) (*Secp256k1KeyPair, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(skHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid secret key hex: %w", err)
	}
	return NewKeyPairFromSecretBytes(data)
}

// HasSecretKey reports whether the pair can sign.
func (k *Secp256k1KeyPair) HasSecretKey() bool {
	return k.sec != nil
}

// PublicKey returns the pair's public key.
func (k *Secp256k1KeyPair) PublicKey() *ecdsa.PublicKey {
	return k.pub
}

// RefreshPublicKey re-derives the public key from the secret key. It is the
// only mutation allowed after construction.
func (k *Secp256k1KeyPair) RefreshPublicKey() error {
	if k.sec == nil {
		return ErrNoSecretKey
	}
	k.pub = &k.sec.PublicKey
	return nil
}

// Equal compares the canonical curve points of the two public keys. Using
// the point rather than a serialized form avoids compressed/uncompressed
// representation mismatches.
func (k *Secp256k1KeyPair) Equal(other *Secp256k1KeyPair) bool {
	if other == nil {
		return false
	}
	return k.pub.Equal(other.pub)
}

// CompressedHex returns the 0x-prefixed compressed public key hexstring, the
// form the registry expects in kv requests and proof submissions.
func (k *Secp256k1KeyPair) CompressedHex() string {
	return "0x" + hex.EncodeToString(crypto.CompressPubkey(k.pub))
}

// UncompressedHex returns the 0x-prefixed uncompressed public key hexstring,
// the form the registry expects in proof payload requests.
func (k *Secp256k1KeyPair) UncompressedHex() string {
	return "0x" + hex.EncodeToString(crypto.FromECDSAPub(k.pub))
}

// SecretHex returns the 0x-prefixed secret key hexstring, or an error if the
// pair has no secret key.
func (k *Secp256k1KeyPair) SecretHex() (string, error) {
	if k.sec == nil {
		return "", ErrNoSecretKey
	}
	return "0x" + hex.EncodeToString(crypto.FromECDSA(k.sec)), nil
}

// Address returns the Ethereum address derived from the pair's public key.
func (k *Secp256k1KeyPair) Address() EthereumAddress {
	return DeriveEthereumAddress(k.pub)
}

// PersonalMessageDigest computes keccak256 over the personal-message framing
// of the payload: the fixed prefix, the decimal byte length of the message
// and the message itself. The length is the encoded byte count, so a string
// of multi-byte characters contributes len(message), not its rune count.
func PersonalMessageDigest(message string) []byte {
	framed := personalMessagePrefix + strconv.Itoa(len(message)) + message
	return crypto.Keccak256([]byte(framed))
}

// PersonalSign produces a deterministic low-S signature over the
// personal-message digest of message, returning the 65-byte r||s||v envelope
// with v in {0, 1}. Fails with ErrNoSecretKey if the pair cannot sign.
func (k *Secp256k1KeyPair) PersonalSign(message string) (Signature, error) {
	if k.sec == nil {
		return nil, ErrNoSecretKey
	}
	raw, err := crypto.Sign(PersonalMessageDigest(message), k.sec)
	if err != nil {
		return nil, fmt.Errorf("could not sign personal message: %w", err)
	}
	return NewSignature(raw)
}

// RecoverFromPersonalSignature recovers the public key that produced the
// given personal-message signature over message. The recovery byte is
// normalized first (27/28 become 0/1; anything else fails with
// ErrInvalidRecoveryID). The returned pair never carries a secret key.
func RecoverFromPersonalSignature(sig Signature, message string) (*Secp256k1KeyPair, error) {
	normalized, err := sig.Normalized()
	if err != nil {
		return nil, err
	}
	pub, err := crypto.SigToPub(PersonalMessageDigest(message), normalized)
	if err != nil {
		return nil, fmt.Errorf("could not recover public key: %w", err)
	}
	return &Secp256k1KeyPair{pub: pub}, nil
}

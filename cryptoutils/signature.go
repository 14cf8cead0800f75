package cryptoutils

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrInvalidRecoveryID is returned when a signature's trailing recovery byte
// is not 0, 1, 27 or 28.
var ErrInvalidRecoveryID = errors.New("invalid signature recovery id")

// SignatureLength is the serialized length of a signature envelope:
// 32 bytes r, 32 bytes s and one recovery byte.
const SignatureLength = 65

// Signature is a 65-byte r||s||v signature envelope. The recovery byte may
// use either the raw 0/1 convention or the legacy 27/28 offset; it is
// normalized on use.
type Signature []byte

// NewSignature validates the envelope length and returns a copy of the data.
func NewSignature(data []byte) (Signature, error) {
	if len(data) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length %d: must be %d bytes", len(data), SignatureLength)
	}
	sig := make(Signature, SignatureLength)
	copy(sig, data)
	return sig, nil
}

// NewSignatureFromBase64 decodes a base64 signature envelope, the form
// signatures take on the wire.
func NewSignatureFromBase64(encoded string) (Signature, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid signature base64: %w", err)
	}
	return NewSignature(data)
}

// Base64 returns the base64 encoding of the envelope.
func (sig Signature) Base64() string {
	return base64.StdEncoding.EncodeToString(sig)
}

// RecoveryID returns the normalized recovery byte: 27 and 28 map to 0 and 1,
// 0 and 1 pass through, and anything else fails with ErrInvalidRecoveryID.
func (sig Signature) RecoveryID() (byte, error) {
	if len(sig) != SignatureLength {
		return 0, fmt.Errorf("invalid signature length %d: must be %d bytes", len(sig), SignatureLength)
	}
	v := sig[SignatureLength-1]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v != 0 && v != 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRecoveryID, sig[SignatureLength-1])
	}
	return v, nil
}

// Normalized returns a copy of the envelope with the recovery byte in the
// 0/1 convention.
func (sig Signature) Normalized() (Signature, error) {
	v, err := sig.RecoveryID()
	if err != nil {
		return nil, err
	}
	normalized := make(Signature, SignatureLength)
	copy(normalized, sig)
	normalized[SignatureLength-1] = v
	return normalized, nil
}

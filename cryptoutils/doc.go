// Package cryptoutils provides the secp256k1 keypair and personal-message
// signature primitives used throughout the SDK.
//
// An avatar is a Secp256k1KeyPair. Pairs created from a secret key can sign;
// pairs parsed from a public key can only verify and recover. Signatures use
// the web3 personal-message scheme: the payload is framed with a fixed
// prefix and its decimal byte length before hashing with Keccak-256, which
// prevents cross-protocol signature reuse.
//
// # Key Types
//
// Secp256k1KeyPair - avatar keypair with optional secret key
//
// Signature - 65-byte r||s||v envelope with recovery-id normalization
//
// EthereumAddress - 20-byte account address derived from a public key
//
// All parsing constructors validate their input locally; malformed hex,
// wrong lengths, out-of-range scalars and invalid recovery ids never reach
// the network layer.
package cryptoutils

package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nextdotid/sdk-go/interfaces"
)

// ProofPayloadProvider obtains challenge payloads for proof procedures.
type ProofPayloadProvider interface {
	// ProofPayload exchanges a payload request for a server-issued challenge.
	ProofPayload(ctx context.Context, req *ProofPayloadRequest) (*ProofPayloadResponse, error)
}

// ProofUploadProvider accepts finalized, signed proof submissions.
type ProofUploadProvider interface {
	// ProofUpload submits a locally validated proof modification. A nil error
	// means the registry accepted it.
	ProofUpload(ctx context.Context, req *ProofUploadRequest) error
}

// ProofQueryProvider looks up existing proof records.
type ProofQueryProvider interface {
	// ProofQuery fetches one page of proof records for a platform/identity pair.
	ProofQuery(ctx context.Context, platform interfaces.Platform, identity string, page int) (*ProofQueryResponse, error)
}

// ProofGateway is the full registry contract consumed by proof procedures.
type ProofGateway interface {
	ProofPayloadProvider
	ProofUploadProvider
	ProofQueryProvider
}

// KVGateway is the registry contract consumed by kv procedures.
type KVGateway interface {
	// KVPayload exchanges a patch description for a server-issued challenge.
	KVPayload(ctx context.Context, req *KVPayloadRequest) (*KVPayloadResponse, error)

	// KVUpload submits a locally validated, signed patch.
	KVUpload(ctx context.Context, req *KVUploadRequest) error

	// KVQueryByAvatar fetches all kv records under an avatar public key.
	KVQueryByAvatar(ctx context.Context, avatarHex string) (*KVQueryResponse, error)

	// KVQueryByIdentity fetches all kv records under a platform/identity pair.
	KVQueryByIdentity(ctx context.Context, platform interfaces.Platform, identity string) (*KVQueryByIdentityResponse, error)
}

// ProofPayloadRequest asks the registry to issue a challenge for a proof
// modification. PublicKey is the 0x-prefixed uncompressed avatar key.
type ProofPayloadRequest struct {
	Action    interfaces.Action   `json:"action"`
	Platform  interfaces.Platform `json:"platform"`
	Identity  string              `json:"identity"`
	PublicKey string              `json:"public_key"`
}

// ProofPayloadResponse carries the server-issued challenge. SignPayload is
// the opaque string the avatar (and possibly a wallet key) must sign;
// PostContent maps template names to the text the user should publish on the
// target platform; CreatedAt is a unix-seconds string.
type ProofPayloadResponse struct {
	PostContent map[string]string `json:"post_content"`
	SignPayload string            `json:"sign_payload"`
	UUID        string            `json:"uuid"`
	CreatedAt   string            `json:"created_at"`
}

// ProofUploadRequest is the finalized proof submission. PublicKey is the
// 0x-prefixed compressed avatar key; CreatedAt echoes the payload timestamp
// as a unix-seconds string.
type ProofUploadRequest struct {
	Action        interfaces.Action   `json:"action"`
	Platform      interfaces.Platform `json:"platform"`
	Identity      string              `json:"identity"`
	ProofLocation string              `json:"proof_location"`
	PublicKey     string              `json:"public_key"`
	UUID          string              `json:"uuid"`
	CreatedAt     string              `json:"created_at"`
	Extra         ProofUploadExtra    `json:"extra"`
}

// ProofUploadExtra carries the collected signatures, base64-encoded.
type ProofUploadExtra struct {
	// Signature is the avatar signature over the challenge.
	Signature string `json:"signature,omitempty"`

	// WalletSignature is the secondary-chain wallet signature over the same
	// challenge, present only for ethereum identities.
	WalletSignature string `json:"wallet_signature,omitempty"`
}

// Pagination describes the registry's paging of query results.
type Pagination struct {
	Total   uint64 `json:"total"`
	Per     int    `json:"per"`
	Current int    `json:"current"`
	Next    int    `json:"next"`
}

// ProofQueryResponse is one page of avatars matching a proof query.
type ProofQueryResponse struct {
	Pagination Pagination         `json:"pagination"`
	IDs        []AvatarWithProofs `json:"ids"`
}

// AvatarWithProofs is a query result: an avatar public key hexstring and its
// current proof records.
type AvatarWithProofs struct {
	Avatar        string        `json:"avatar"`
	LastArweaveID string        `json:"last_arweave_id"`
	Proofs        []SingleProof `json:"proofs"`
}

// SingleProof is one proof record as returned by queries. Timestamps are
// unix-seconds strings.
type SingleProof struct {
	Platform      interfaces.Platform `json:"platform"`
	Identity      string              `json:"identity"`
	CreatedAt     string              `json:"created_at"`
	LastCheckedAt string              `json:"last_checked_at"`
	IsValid       bool                `json:"is_valid"`
	InvalidReason string              `json:"invalid_reason"`
}

// KVPayloadRequest asks the registry to issue a challenge for a kv patch.
// Avatar is the 0x-prefixed compressed avatar key.
type KVPayloadRequest struct {
	Avatar   string              `json:"avatar"`
	Platform interfaces.Platform `json:"platform"`
	Identity string              `json:"identity"`
	Patch    json.RawMessage     `json:"patch"`
}

// KVPayloadResponse carries the challenge for a kv patch. CreatedAt is unix
// seconds.
type KVPayloadResponse struct {
	UUID        string `json:"uuid"`
	SignPayload string `json:"sign_payload"`
	CreatedAt   int64  `json:"created_at"`
}

// KVUploadRequest is the finalized, signed kv patch submission.
type KVUploadRequest struct {
	Avatar    string              `json:"avatar"`
	Platform  interfaces.Platform `json:"platform"`
	Identity  string              `json:"identity"`
	UUID      string              `json:"uuid"`
	CreatedAt int64               `json:"created_at"`
	Signature string              `json:"signature"`
	Patch     json.RawMessage     `json:"patch"`
}

// KVQueryResponse lists all kv records under one avatar.
type KVQueryResponse struct {
	Avatar string    `json:"avatar"`
	Proofs []KVProof `json:"proofs"`
}

// KVProof is one kv record: the bound identity and its JSON content.
type KVProof struct {
	Platform interfaces.Platform `json:"platform"`
	Identity string              `json:"identity"`
	Content  json.RawMessage     `json:"content"`
}

// KVQueryByIdentityResponse lists avatars holding kv content for an identity.
type KVQueryByIdentityResponse struct {
	Values []KVQueryByIdentityValue `json:"values"`
}

// KVQueryByIdentityValue pairs an avatar public key hexstring with its
// content for the queried identity.
type KVQueryByIdentityValue struct {
	Avatar  string          `json:"avatar"`
	Content json.RawMessage `json:"content"`
}

// RemoteError is a structured registry rejection: any response outside the
// 2xx range. It carries the raw status and body for diagnostics; the SDK
// never retries it.
type RemoteError struct {
	StatusCode int
	Body       string
}

// Error formats the rejection with its status and body.
func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("registry rejected request: status %d", e.StatusCode)
	}
	return fmt.Sprintf("registry rejected request: status %d: %s", e.StatusCode, e.Body)
}

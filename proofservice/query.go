package proofservice

import (
	"context"
	"fmt"
	"time"

	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/cryptoutils"
	"github.com/nextdotid/sdk-go/interfaces"
)

// Avatar is a parsed query result: the avatar keypair (public part only) and
// its current proof records.
type Avatar struct {
	KeyPair       *cryptoutils.Secp256k1KeyPair
	LastArweaveID string
	Proofs        []Proof
}

// Proof is one parsed proof record.
type Proof struct {
	Platform      interfaces.Platform
	Identity      string
	CreatedAt     time.Time
	LastCheckedAt time.Time
	IsValid       bool
	InvalidReason string
}

// QueryResult is one page of avatars matching a query, with the registry's
// paging cursor so callers can walk further pages.
type QueryResult struct {
	Pagination api.Pagination
	Avatars    []Avatar
}

// FindBy fetches one page of avatars bound to the given platform identity.
// Page numbering starts at 1; a zero Pagination.Next means the last page.
func FindBy(ctx context.Context, gateway api.ProofQueryProvider, platform interfaces.Platform, identity string, page int) (*QueryResult, error) {
	if err := platform.Validate(); err != nil {
		return nil, err
	}

	resp, err := gateway.ProofQuery(ctx, platform, identity, page)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		Pagination: resp.Pagination,
		Avatars:    make([]Avatar, 0, len(resp.IDs)),
	}
	for _, id := range resp.IDs {
		avatar, err := parseAvatar(id)
		if err != nil {
			return nil, err
		}
		result.Avatars = append(result.Avatars, avatar)
	}
	return result, nil
}

func parseAvatar(id api.AvatarWithProofs) (Avatar, error) {
	keypair, err := cryptoutils.NewKeyPairFromPublicHex(id.Avatar)
	if err != nil {
		return Avatar{}, fmt.Errorf("registry returned a malformed avatar key %q: %w", id.Avatar, err)
	}

	avatar := Avatar{
		KeyPair:       keypair,
		LastArweaveID: id.LastArweaveID,
		Proofs:        make([]Proof, 0, len(id.Proofs)),
	}
	for _, raw := range id.Proofs {
		createdAt, err := parseUnixString(raw.CreatedAt)
		if err != nil {
			return Avatar{}, fmt.Errorf("registry returned a malformed created_at %q: %w", raw.CreatedAt, err)
		}
		lastCheckedAt, err := parseUnixString(raw.LastCheckedAt)
		if err != nil {
			return Avatar{}, fmt.Errorf("registry returned a malformed last_checked_at %q: %w", raw.LastCheckedAt, err)
		}
		avatar.Proofs = append(avatar.Proofs, Proof{
			Platform:      raw.Platform,
			Identity:      raw.Identity,
			CreatedAt:     createdAt,
			LastCheckedAt: lastCheckedAt,
			IsValid:       raw.IsValid,
			InvalidReason: raw.InvalidReason,
		})
	}
	return avatar, nil
}

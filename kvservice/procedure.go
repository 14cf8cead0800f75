package kvservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/cryptoutils"
	"github.com/nextdotid/sdk-go/interfaces"
)

// Procedure drives one kv patch through the same forward-only stages as a
// proof procedure: request a challenge, validate the avatar signature
// locally, then submit. KV patches are always authorized by the avatar key
// alone, regardless of the platform the record is filed under.
//
// A Procedure is not safe for concurrent use.
type Procedure struct {
	gateway  api.KVGateway
	platform interfaces.Platform
	identity string
	avatar   *cryptoutils.Secp256k1KeyPair
	patch    json.RawMessage

	state     interfaces.ProcedureState
	challenge string
	uuid      string
	createdAt time.Time
}

// NewProcedure starts a kv patch for the given avatar and identity. The
// patch is an RFC 7396 merge document: object fields overwrite, explicit
// nulls delete. It must be valid JSON; the registry applies it verbatim.
func NewProcedure(gateway api.KVGateway, platform interfaces.Platform, identity string, avatar *cryptoutils.Secp256k1KeyPair, patch json.RawMessage) (*Procedure, error) {
	if err := platform.Validate(); err != nil {
		return nil, err
	}
	if avatar == nil {
		return nil, errors.New("avatar keypair is required")
	}
	if !json.Valid(patch) {
		return nil, errors.New("patch must be a valid JSON document")
	}

	return &Procedure{
		gateway:  gateway,
		platform: platform,
		identity: identity,
		avatar:   avatar,
		patch:    patch,
		state:    interfaces.StateCreated,
	}, nil
}

// State returns the current procedure state.
func (p *Procedure) State() interfaces.ProcedureState {
	return p.state
}

// Challenge returns the server-issued string to sign, available once
// RequestChallenge has succeeded.
func (p *Procedure) Challenge() (string, error) {
	if p.state < interfaces.StatePayloadRequested {
		return "", fmt.Errorf("%w: challenge not requested yet", interfaces.ErrInvalidState)
	}
	return p.challenge, nil
}

// UUID returns the server-issued correlation id, available once
// RequestChallenge has succeeded.
func (p *Procedure) UUID() (string, error) {
	if p.state < interfaces.StatePayloadRequested {
		return "", fmt.Errorf("%w: challenge not requested yet", interfaces.ErrInvalidState)
	}
	return p.uuid, nil
}

// CreatedAt returns the challenge issuance time, available once
// RequestChallenge has succeeded.
func (p *Procedure) CreatedAt() (time.Time, error) {
	if p.state < interfaces.StatePayloadRequested {
		return time.Time{}, fmt.Errorf("%w: challenge not requested yet", interfaces.ErrInvalidState)
	}
	return p.createdAt, nil
}

// RequestChallenge asks the registry for the challenge payload, advancing
// the procedure from Created to PayloadRequested.
func (p *Procedure) RequestChallenge(ctx context.Context) error {
	if p.state != interfaces.StateCreated {
		return fmt.Errorf("%w: request_challenge requires state %s, procedure is %s",
			interfaces.ErrInvalidState, interfaces.StateCreated, p.state)
	}

	resp, err := p.gateway.KVPayload(ctx, &api.KVPayloadRequest{
		Avatar:   p.avatar.CompressedHex(),
		Platform: p.platform,
		Identity: p.identity,
		Patch:    p.patch,
	})
	if err != nil {
		return err
	}

	if _, err := uuid.Parse(resp.UUID); err != nil {
		return fmt.Errorf("registry issued a malformed uuid %q: %w", resp.UUID, err)
	}

	p.uuid = resp.UUID
	p.createdAt = time.Unix(resp.CreatedAt, 0).UTC()
	p.challenge = resp.SignPayload
	p.state = interfaces.StatePayloadRequested
	return nil
}

// Submit validates the avatar signature over the challenge and sends the
// finalized patch to the registry. A mismatched signature aborts with
// ErrSignatureMismatch before any network call.
func (p *Procedure) Submit(ctx context.Context, avatarSig cryptoutils.Signature) error {
	if p.state != interfaces.StatePayloadRequested {
		return fmt.Errorf("%w: submit requires state %s, procedure is %s",
			interfaces.ErrInvalidState, interfaces.StatePayloadRequested, p.state)
	}

	if avatarSig == nil {
		return fmt.Errorf("%w: %s signature required", interfaces.ErrPolicyViolation, interfaces.RoleAvatar)
	}
	recovered, err := cryptoutils.RecoverFromPersonalSignature(avatarSig, p.challenge)
	if err != nil {
		return err
	}
	if !recovered.Equal(p.avatar) {
		return fmt.Errorf("%w: %s signature", interfaces.ErrSignatureMismatch, interfaces.RoleAvatar)
	}

	p.state = interfaces.StateLocallyValidated

	err = p.gateway.KVUpload(ctx, &api.KVUploadRequest{
		Avatar:    p.avatar.CompressedHex(),
		Platform:  p.platform,
		Identity:  p.identity,
		UUID:      p.uuid,
		CreatedAt: p.createdAt.Unix(),
		Signature: avatarSig.Base64(),
		Patch:     p.patch,
	})
	if err != nil {
		return err
	}

	p.state = interfaces.StateCommitted
	return nil
}

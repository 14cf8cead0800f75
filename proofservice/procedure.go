package proofservice

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/cryptoutils"
	"github.com/nextdotid/sdk-go/interfaces"
	"github.com/nextdotid/sdk-go/policy"
)

// Procedure drives one proof-chain modification through its fixed stages:
// request a challenge from the registry, validate the collected signatures
// locally against the policy matrix, then submit. Transitions are forward
// only; any failure leaves the instance at its last successfully reached
// state and the caller must construct a new Procedure to try again.
//
// A Procedure is not safe for concurrent use. Call sites must serialize
// RequestChallenge and Submit on one instance; independent instances may run
// concurrently.
type Procedure struct {
	gateway  api.ProofGateway
	action   interfaces.Action
	platform interfaces.Platform
	identity string
	avatar   *cryptoutils.Secp256k1KeyPair

	state         interfaces.ProcedureState
	challenge     string
	uuid          string
	createdAt     time.Time
	postContent   map[string]string
	proofLocation string
}

// NewProcedure starts a proof modification for the given avatar and target
// identity. For the ethereum platform the identity must be a hex-encoded
// account address; for social platforms it is the username or handle.
func NewProcedure(gateway api.ProofGateway, action interfaces.Action, platform interfaces.Platform, identity string, avatar *cryptoutils.Secp256k1KeyPair) (*Procedure, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}
	if err := platform.Validate(); err != nil {
		return nil, err
	}
	if avatar == nil {
		return nil, errors.New("avatar keypair is required")
	}
	if platform == interfaces.PlatformEthereum {
		if _, err := cryptoutils.NewEthereumAddressFromHex(identity); err != nil {
			return nil, fmt.Errorf("ethereum identity must be an account address: %w", err)
		}
	}

	return &Procedure{
		gateway:  gateway,
		action:   action,
		platform: platform,
		identity: identity,
		avatar:   avatar,
		state:    interfaces.StateCreated,
	}, nil
}

// State returns the current procedure state.
func (p *Procedure) State() interfaces.ProcedureState {
	return p.state
}

// Avatar returns the procedure's avatar keypair.
func (p *Procedure) Avatar() *cryptoutils.Secp256k1KeyPair {
	return p.avatar
}

// Challenge returns the server-issued string to sign. It only exists once
// RequestChallenge has succeeded; earlier calls fail with ErrInvalidState.
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

// PostContent returns the per-template post bodies the user should publish
// on the target platform, available once RequestChallenge has succeeded.
// The %SIG_BASE64% placeholder must be replaced with the base64 avatar
// signature before posting.
func (p *Procedure) PostContent() (map[string]string, error) {
	if p.state < interfaces.StatePayloadRequested {
		return nil, fmt.Errorf("%w: challenge not requested yet", interfaces.ErrInvalidState)
	}
	content := make(map[string]string, len(p.postContent))
	for name, body := range p.postContent {
		content[name] = body
	}
	return content, nil
}

// ProofLocation returns the submitted proof location, available once Submit
// has passed local validation.
func (p *Procedure) ProofLocation() (string, error) {
	if p.state < interfaces.StateLocallyValidated {
		return "", fmt.Errorf("%w: proof not submitted yet", interfaces.ErrInvalidState)
	}
	return p.proofLocation, nil
}

// RequestChallenge asks the registry for the challenge payload, advancing
// the procedure from Created to PayloadRequested. Calling it in any other
// state fails with ErrInvalidState before any network activity.
func (p *Procedure) RequestChallenge(ctx context.Context) error {
	if p.state != interfaces.StateCreated {
		return fmt.Errorf("%w: request_challenge requires state %s, procedure is %s",
			interfaces.ErrInvalidState, interfaces.StateCreated, p.state)
	}

	resp, err := p.gateway.ProofPayload(ctx, &api.ProofPayloadRequest{
		Action:    p.action,
		Platform:  p.platform,
		Identity:  p.identity,
		PublicKey: p.avatar.UncompressedHex(),
	})
	if err != nil {
		return err
	}

	if _, err := uuid.Parse(resp.UUID); err != nil {
		return fmt.Errorf("registry issued a malformed uuid %q: %w", resp.UUID, err)
	}
	createdAt, err := parseUnixString(resp.CreatedAt)
	if err != nil {
		return fmt.Errorf("registry issued a malformed created_at %q: %w", resp.CreatedAt, err)
	}

	p.uuid = resp.UUID
	p.createdAt = createdAt
	p.challenge = resp.SignPayload
	p.postContent = resp.PostContent
	p.state = interfaces.StatePayloadRequested
	return nil
}

// Submit validates the supplied signatures against the policy rule for the
// procedure's platform and action, then sends the finalized record to the
// registry. Validation failures (ErrSignatureMismatch, ErrPolicyViolation)
// abort before any network call. On registry acceptance the procedure
// reaches Committed; a remote rejection leaves it at LocallyValidated and
// the instance must be discarded, since re-signing would be required anyway.
//
// avatarSig is required by every rule. secondarySig only applies to
// ethereum identities and is ignored elsewhere.
func (p *Procedure) Submit(ctx context.Context, proofLocation string, avatarSig, secondarySig cryptoutils.Signature) error {
	if p.state != interfaces.StatePayloadRequested {
		return fmt.Errorf("%w: submit requires state %s, procedure is %s",
			interfaces.ErrInvalidState, interfaces.StatePayloadRequested, p.state)
	}

	rule := policy.RequiredSignatures(p.platform, p.action)
	extra, err := p.validateSignatures(rule, avatarSig, secondarySig)
	if err != nil {
		return err
	}

	p.proofLocation = proofLocation
	p.state = interfaces.StateLocallyValidated

	err = p.gateway.ProofUpload(ctx, &api.ProofUploadRequest{
		Action:        p.action,
		Platform:      p.platform,
		Identity:      p.identity,
		ProofLocation: proofLocation,
		PublicKey:     p.avatar.CompressedHex(),
		UUID:          p.uuid,
		CreatedAt:     strconv.FormatInt(p.createdAt.Unix(), 10),
		Extra:         extra,
	})
	if err != nil {
		return err
	}

	p.state = interfaces.StateCommitted
	return nil
}

// validateSignatures checks each supplied signature against its role and
// evaluates the policy rule over the outcomes. It never touches the network.
func (p *Procedure) validateSignatures(rule policy.Rule, avatarSig, secondarySig cryptoutils.Signature) (api.ProofUploadExtra, error) {
	avatarErr := p.validateAvatarSignature(avatarSig)

	if !rule.RequireSecondary {
		if avatarErr != nil {
			return api.ProofUploadExtra{}, avatarErr
		}
		return api.ProofUploadExtra{Signature: avatarSig.Base64()}, nil
	}

	secondaryErr := p.validateSecondarySignature(secondarySig)

	switch rule.Mode {
	case policy.AllOf:
		if avatarErr != nil {
			return api.ProofUploadExtra{}, avatarErr
		}
		if secondaryErr != nil {
			return api.ProofUploadExtra{}, secondaryErr
		}
	case policy.AnyOf:
		if avatarErr != nil && secondaryErr != nil {
			// A concrete mismatch is more informative than the aggregate
			// policy failure, surface it when one occurred.
			for _, err := range []error{avatarErr, secondaryErr} {
				if errors.Is(err, interfaces.ErrSignatureMismatch) {
					return api.ProofUploadExtra{}, err
				}
			}
			return api.ProofUploadExtra{}, fmt.Errorf("%w: %s requires the %s or %s signature",
				interfaces.ErrPolicyViolation, rule.Mode, interfaces.RoleAvatar, interfaces.RoleSecondaryChain)
		}
	}

	extra := api.ProofUploadExtra{}
	if avatarErr == nil {
		extra.Signature = avatarSig.Base64()
	}
	if secondaryErr == nil {
		extra.WalletSignature = secondarySig.Base64()
	}
	return extra, nil
}

// validateAvatarSignature recovers the signer of the challenge and requires
// it to be the procedure's avatar, compared on the canonical curve point.
func (p *Procedure) validateAvatarSignature(sig cryptoutils.Signature) error {
	if sig == nil {
		return fmt.Errorf("%w: %s signature required", interfaces.ErrPolicyViolation, interfaces.RoleAvatar)
	}
	recovered, err := cryptoutils.RecoverFromPersonalSignature(sig, p.challenge)
	if err != nil {
		return err
	}
	if !recovered.Equal(p.avatar) {
		return fmt.Errorf("%w: %s signature", interfaces.ErrSignatureMismatch, interfaces.RoleAvatar)
	}
	return nil
}

// validateSecondarySignature recovers the signer of the challenge and
// requires its derived address to match the identity being bound.
func (p *Procedure) validateSecondarySignature(sig cryptoutils.Signature) error {
	if sig == nil {
		return fmt.Errorf("%w: %s signature required", interfaces.ErrPolicyViolation, interfaces.RoleSecondaryChain)
	}
	recovered, err := cryptoutils.RecoverFromPersonalSignature(sig, p.challenge)
	if err != nil {
		return err
	}
	expected, err := cryptoutils.NewEthereumAddressFromHex(p.identity)
	if err != nil {
		return fmt.Errorf("ethereum identity must be an account address: %w", err)
	}
	if !recovered.Address().Equal(expected) {
		return fmt.Errorf("%w: %s signature recovers to %s, identity is %s",
			interfaces.ErrSignatureMismatch, interfaces.RoleSecondaryChain, recovered.Address(), expected)
	}
	return nil
}

func parseUnixString(value string) (time.Time, error) {
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(seconds, 0).UTC(), nil
}

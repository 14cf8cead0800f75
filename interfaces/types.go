// Package interfaces defines the core types shared by the proof and kv
// procedure implementations without tying them to a transport.
package interfaces

import "fmt"

// Action is a modification applied to an avatar's proof chain or kv store.
type Action string

const (
	// ActionCreate binds a new proof or kv record to the avatar.
	ActionCreate Action = "create"

	// ActionDelete revokes an existing proof or kv record.
	ActionDelete Action = "delete"
)

// Validate checks that the action is one of the supported values.
func (a Action) Validate() error {
	switch a {
	case ActionCreate, ActionDelete:
		return nil
	default:
		return fmt.Errorf("unsupported action: %q", string(a))
	}
}

// String returns the wire representation of the action.
func (a Action) String() string {
	return string(a)
}

// Platform identifies an external identity platform supported by the registry.
type Platform string

const (
	PlatformGithub   Platform = "github"
	PlatformNextID   Platform = "nextid"
	PlatformTwitter  Platform = "twitter"
	PlatformKeybase  Platform = "keybase"
	PlatformEthereum Platform = "ethereum"
	PlatformDiscord  Platform = "discord"
	PlatformDas      Platform = "dotbit"
	PlatformSolana   Platform = "solana"
)

var knownPlatforms = map[Platform]struct{}{
	PlatformGithub:   {},
	PlatformNextID:   {},
	PlatformTwitter:  {},
	PlatformKeybase:  {},
	PlatformEthereum: {},
	PlatformDiscord:  {},
	PlatformDas:      {},
	PlatformSolana:   {},
}

// Validate checks that the platform is known to the registry.
func (p Platform) Validate() error {
	if _, ok := knownPlatforms[p]; !ok {
		return fmt.Errorf("unsupported platform: %q", string(p))
	}
	return nil
}

// String returns the wire representation of the platform.
func (p Platform) String() string {
	return string(p)
}

// SignatureRole distinguishes the collected signatures of a procedure.
type SignatureRole int

const (
	// RoleAvatar is the signature produced by the avatar keypair itself.
	RoleAvatar SignatureRole = iota

	// RoleSecondaryChain is the signature produced by the wallet key of the
	// blockchain identity being bound (ethereum platform only).
	RoleSecondaryChain
)

// String returns a human-readable role name for diagnostics.
func (r SignatureRole) String() string {
	switch r {
	case RoleAvatar:
		return "avatar"
	case RoleSecondaryChain:
		return "secondary-chain"
	default:
		return fmt.Sprintf("unknown-role-%d", int(r))
	}
}

// ProcedureState tracks the forward-only progress of a procedure instance.
// Transitions never loop and never rewind; a failed procedure stays at its
// last successfully reached state and must be replaced, not retried.
type ProcedureState int

const (
	// StateCreated is the initial state of every procedure.
	StateCreated ProcedureState = iota

	// StatePayloadRequested means a challenge payload has been obtained from
	// the registry and is awaiting signatures.
	StatePayloadRequested

	// StateLocallyValidated means all supplied signatures satisfied the
	// policy rule; the final submission is in flight.
	StateLocallyValidated

	// StateCommitted means the registry accepted the submission. Terminal.
	StateCommitted
)

// String returns a human-readable state name for diagnostics.
func (s ProcedureState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StatePayloadRequested:
		return "payload-requested"
	case StateLocallyValidated:
		return "locally-validated"
	case StateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("unknown-state-%d", int(s))
	}
}

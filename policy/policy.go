// Package policy decides which signatures a submission must carry for a
// given platform and action. The matrix is table-driven so new platforms and
// actions are added as rows, not as branches in the procedure logic.
package policy

import "github.com/nextdotid/sdk-go/interfaces"

// Mode selects how a multi-signature rule is satisfied.
type Mode int

const (
	// AllOf requires every signature named by the rule to validate.
	AllOf Mode = iota

	// AnyOf requires at least one signature named by the rule to validate.
	AnyOf
)

// String returns a human-readable mode name for diagnostics.
func (m Mode) String() string {
	if m == AnyOf {
		return "any-of"
	}
	return "all-of"
}

// Rule describes the signatures required for one (platform, action) pair.
type Rule struct {
	// RequireSecondary marks rules that involve the secondary-chain wallet
	// signature in addition to the avatar signature.
	RequireSecondary bool

	// Mode only applies when RequireSecondary is set.
	Mode Mode
}

// AvatarOnly is the default rule: a single valid avatar signature.
var AvatarOnly = Rule{}

type ruleKey struct {
	platform interfaces.Platform
	action   interfaces.Action
}

// Ethereum identities carry their own wallet key, so binding one requires
// proof of control from both sides, while revoking accepts either side.
var rules = map[ruleKey]Rule{
	{interfaces.PlatformEthereum, interfaces.ActionCreate}: {RequireSecondary: true, Mode: AllOf},
	{interfaces.PlatformEthereum, interfaces.ActionDelete}: {RequireSecondary: true, Mode: AnyOf},
}

// RequiredSignatures returns the signature rule for a platform and action.
// Every pair without an explicit table entry uses AvatarOnly.
func RequiredSignatures(platform interfaces.Platform, action interfaces.Action) Rule {
	if rule, ok := rules[ruleKey{platform, action}]; ok {
		return rule
	}
	return AvatarOnly
}

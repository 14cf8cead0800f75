package policy

import (
	"testing"

	"github.com/nextdotid/sdk-go/interfaces"
	"github.com/stretchr/testify/assert"
)

func TestRequiredSignatures(t *testing.T) {
	cases := []struct {
		platform interfaces.Platform
		action   interfaces.Action
		want     Rule
	}{
		{interfaces.PlatformTwitter, interfaces.ActionCreate, AvatarOnly},
		{interfaces.PlatformTwitter, interfaces.ActionDelete, AvatarOnly},
		{interfaces.PlatformGithub, interfaces.ActionCreate, AvatarOnly},
		{interfaces.PlatformKeybase, interfaces.ActionDelete, AvatarOnly},
		{interfaces.PlatformDiscord, interfaces.ActionCreate, AvatarOnly},
		{interfaces.PlatformDas, interfaces.ActionCreate, AvatarOnly},
		{interfaces.PlatformSolana, interfaces.ActionCreate, AvatarOnly},
		{interfaces.PlatformEthereum, interfaces.ActionCreate, Rule{RequireSecondary: true, Mode: AllOf}},
		{interfaces.PlatformEthereum, interfaces.ActionDelete, Rule{RequireSecondary: true, Mode: AnyOf}},
	}

	for _, tc := range cases {
		got := RequiredSignatures(tc.platform, tc.action)
		assert.Equal(t, tc.want, got, "%s/%s", tc.platform, tc.action)
	}
}

func TestUnknownPairFallsBackToAvatarOnly(t *testing.T) {
	got := RequiredSignatures(interfaces.Platform("carrier-pigeon"), interfaces.ActionCreate)
	assert.Equal(t, AvatarOnly, got)
	assert.False(t, got.RequireSecondary)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "all-of", AllOf.String())
	assert.Equal(t, "any-of", AnyOf.String())
}

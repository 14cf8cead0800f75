package kvservice

import (
	"context"
	"fmt"

	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/cryptoutils"
	"github.com/nextdotid/sdk-go/interfaces"
)

// FindByAvatar fetches all kv records stored under an avatar public key.
func FindByAvatar(ctx context.Context, gateway api.KVGateway, avatar *cryptoutils.Secp256k1KeyPair) (*api.KVQueryResponse, error) {
	if avatar == nil {
		return nil, fmt.Errorf("avatar keypair is required")
	}
	return gateway.KVQueryByAvatar(ctx, avatar.CompressedHex())
}

// FindByIdentity fetches the kv content every avatar holds for one platform
// identity.
func FindByIdentity(ctx context.Context, gateway api.KVGateway, platform interfaces.Platform, identity string) (*api.KVQueryByIdentityResponse, error) {
	if err := platform.Validate(); err != nil {
		return nil, err
	}
	return gateway.KVQueryByIdentity(ctx, platform, identity)
}

package clients

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/interfaces"
	"github.com/stretchr/testify/mock"
)

// Well-known KVService deployments.
const (
	KVServiceProduction = "https://kv-service.next.id"
	KVServiceStaging    = "https://kv-service.nextnext.id"
)

// KVServiceClient implements api.KVGateway over HTTP.
type KVServiceClient struct {
	// ServerAddr is the base URL of the KVService deployment, without a
	// trailing slash.
	ServerAddr string

	// HTTPClient overrides http.DefaultClient when set.
	HTTPClient *http.Client
}

// KVPayload requests a challenge payload for a kv patch.
func (c *KVServiceClient) KVPayload(ctx context.Context, req *api.KVPayloadRequest) (*api.KVPayloadResponse, error) {
	var resp api.KVPayloadResponse
	if err := doJSON(ctx, c.HTTPClient, http.MethodPost, joinURL(c.ServerAddr, "v1/kv/payload", nil), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// KVUpload submits a finalized, signed kv patch.
func (c *KVServiceClient) KVUpload(ctx context.Context, req *api.KVUploadRequest) error {
	return doJSON(ctx, c.HTTPClient, http.MethodPost, joinURL(c.ServerAddr, "v1/kv", nil), req, nil)
}

// KVQueryByAvatar fetches all kv records under an avatar public key, passed
// as a 0x-prefixed compressed hexstring.
func (c *KVServiceClient) KVQueryByAvatar(ctx context.Context, avatarHex string) (*api.KVQueryResponse, error) {
	query := url.Values{}
	query.Set("avatar", avatarHex)

	var resp api.KVQueryResponse
	if err := doJSON(ctx, c.HTTPClient, http.MethodGet, joinURL(c.ServerAddr, "v1/kv", query), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// KVQueryByIdentity fetches all kv records under a platform/identity pair.
func (c *KVServiceClient) KVQueryByIdentity(ctx context.Context, platform interfaces.Platform, identity string) (*api.KVQueryByIdentityResponse, error) {
	query := url.Values{}
	query.Set("platform", platform.String())
	query.Set("identity", identity)

	var resp api.KVQueryByIdentityResponse
	if err := doJSON(ctx, c.HTTPClient, http.MethodGet, joinURL(c.ServerAddr, "v1/kv/by_identity", query), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MockKVGateway implements a mock api.KVGateway for testing.
type MockKVGateway struct {
	mock.Mock
}

// KVPayload implements api.KVGateway for testing.
func (m *MockKVGateway) KVPayload(ctx context.Context, req *api.KVPayloadRequest) (*api.KVPayloadResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.KVPayloadResponse), args.Error(1)
}

// KVUpload implements api.KVGateway for testing.
func (m *MockKVGateway) KVUpload(ctx context.Context, req *api.KVUploadRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// KVQueryByAvatar implements api.KVGateway for testing.
func (m *MockKVGateway) KVQueryByAvatar(ctx context.Context, avatarHex string) (*api.KVQueryResponse, error) {
	args := m.Called(ctx, avatarHex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.KVQueryResponse), args.Error(1)
}

// KVQueryByIdentity implements api.KVGateway for testing.
func (m *MockKVGateway) KVQueryByIdentity(ctx context.Context, platform interfaces.Platform, identity string) (*api.KVQueryByIdentityResponse, error) {
	args := m.Called(ctx, platform, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.KVQueryByIdentityResponse), args.Error(1)
}

package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/interfaces"
	"github.com/stretchr/testify/mock"
)

// Well-known ProofService deployments.
const (
	ProofServiceProduction = "https://proof-service.next.id"
	ProofServiceStaging    = "https://proof-service.nextnext.id"
)

// ProofServiceClient implements api.ProofGateway over HTTP.
type ProofServiceClient struct {
	// ServerAddr is the base URL of the ProofService deployment, without a
	// trailing slash.
	ServerAddr string

	// HTTPClient overrides http.DefaultClient when set.
	HTTPClient *http.Client
}

// ProofPayload requests a challenge payload for a proof modification.
func (c *ProofServiceClient) ProofPayload(ctx context.Context, req *api.ProofPayloadRequest) (*api.ProofPayloadResponse, error) {
	var resp api.ProofPayloadResponse
	if err := doJSON(ctx, c.HTTPClient, http.MethodPost, joinURL(c.ServerAddr, "v1/proof/payload", nil), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProofUpload submits a finalized proof modification. The registry answers
// an empty 201 on success.
func (c *ProofServiceClient) ProofUpload(ctx context.Context, req *api.ProofUploadRequest) error {
	return doJSON(ctx, c.HTTPClient, http.MethodPost, joinURL(c.ServerAddr, "v1/proof", nil), req, nil)
}

// ProofQuery fetches one page of proof records for a platform/identity pair.
func (c *ProofServiceClient) ProofQuery(ctx context.Context, platform interfaces.Platform, identity string, page int) (*api.ProofQueryResponse, error) {
	query := url.Values{}
	query.Set("platform", platform.String())
	query.Set("identity", identity)
	query.Set("page", strconv.Itoa(page))

	var resp api.ProofQueryResponse
	if err := doJSON(ctx, c.HTTPClient, http.MethodGet, joinURL(c.ServerAddr, "v1/proof", query), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MockProofGateway implements a mock api.ProofGateway for testing.
type MockProofGateway struct {
	mock.Mock
}

// ProofPayload implements api.ProofPayloadProvider for testing.
func (m *MockProofGateway) ProofPayload(ctx context.Context, req *api.ProofPayloadRequest) (*api.ProofPayloadResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.ProofPayloadResponse), args.Error(1)
}

// ProofUpload implements api.ProofUploadProvider for testing.
func (m *MockProofGateway) ProofUpload(ctx context.Context, req *api.ProofUploadRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// ProofQuery implements api.ProofQueryProvider for testing.
func (m *MockProofGateway) ProofQuery(ctx context.Context, platform interfaces.Platform, identity string, page int) (*api.ProofQueryResponse, error) {
	args := m.Called(ctx, platform, identity, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.ProofQueryResponse), args.Error(1)
}

package kvservice

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/api/clients"
	"github.com/nextdotid/sdk-go/cryptoutils"
	"github.com/nextdotid/sdk-go/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testUUID      = "65e20eba-7672-45f1-ab43-ec24b30a8e72"
	testChallenge = `{"avatar":"0x02...","created_at":1700000000,"identity":"my_twitter","patch":{"display_name":"Alice"},"platform":"twitter","uuid":"65e20eba-7672-45f1-ab43-ec24b30a8e72"}`
)

func payloadResponse() *api.KVPayloadResponse {
	return &api.KVPayloadResponse{
		UUID:        testUUID,
		SignPayload: testChallenge,
		CreatedAt:   1700000000,
	}
}

func TestNewProcedureValidatesInputs(t *testing.T) {
	avatar, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	patch := json.RawMessage(`{"display_name":"Alice"}`)

	_, err = NewProcedure(nil, interfaces.Platform("myspace"), "alice", avatar, patch)
	assert.Error(t, err)

	_, err = NewProcedure(nil, interfaces.PlatformTwitter, "alice", nil, patch)
	assert.Error(t, err)

	_, err = NewProcedure(nil, interfaces.PlatformTwitter, "alice", avatar, json.RawMessage(`{broken`))
	assert.Error(t, err)
}

func TestPatchFlow(t *testing.T) {
	avatar, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	patch := json.RawMessage(`{"display_name":"Alice","obsolete":null}`)

	gateway := new(clients.MockKVGateway)
	procedure, err := NewProcedure(gateway, interfaces.PlatformTwitter, "my_twitter", avatar, patch)
	require.NoError(t, err)
	require.Equal(t, interfaces.StateCreated, procedure.State())

	_, err = procedure.Challenge()
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)
	err = procedure.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)

	gateway.On("KVPayload", mock.Anything, &api.KVPayloadRequest{
		Avatar:   avatar.CompressedHex(),
		Platform: interfaces.PlatformTwitter,
		Identity: "my_twitter",
		Patch:    patch,
	}).Return(payloadResponse(), nil).Once()

	require.NoError(t, procedure.RequestChallenge(context.Background()))
	require.Equal(t, interfaces.StatePayloadRequested, procedure.State())

	challenge, err := procedure.Challenge()
	require.NoError(t, err)
	sig, err := avatar.PersonalSign(challenge)
	require.NoError(t, err)

	var uploaded *api.KVUploadRequest
	gateway.On("KVUpload", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		uploaded = args.Get(1).(*api.KVUploadRequest)
	}).Return(nil).Once()

	require.NoError(t, procedure.Submit(context.Background(), sig))
	assert.Equal(t, interfaces.StateCommitted, procedure.State())

	require.NotNil(t, uploaded)
	assert.Equal(t, avatar.CompressedHex(), uploaded.Avatar)
	assert.Equal(t, testUUID, uploaded.UUID)
	assert.Equal(t, int64(1700000000), uploaded.CreatedAt)
	assert.Equal(t, sig.Base64(), uploaded.Signature)
	assert.Equal(t, patch, uploaded.Patch)

	gateway.AssertExpectations(t)
}

func TestTamperedSignatureNeverReachesRegistry(t *testing.T) {
	avatar, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	gateway := new(clients.MockKVGateway)
	procedure, err := NewProcedure(gateway, interfaces.PlatformTwitter, "my_twitter", avatar, json.RawMessage(`{}`))
	require.NoError(t, err)

	gateway.On("KVPayload", mock.Anything, mock.Anything).Return(payloadResponse(), nil).Once()
	require.NoError(t, procedure.RequestChallenge(context.Background()))

	badSig, err := avatar.PersonalSign("not the challenge")
	require.NoError(t, err)

	err = procedure.Submit(context.Background(), badSig)
	assert.ErrorIs(t, err, interfaces.ErrSignatureMismatch)
	assert.Equal(t, interfaces.StatePayloadRequested, procedure.State())

	err = procedure.Submit(context.Background(), nil)
	assert.ErrorIs(t, err, interfaces.ErrPolicyViolation)

	gateway.AssertNotCalled(t, "KVUpload", mock.Anything, mock.Anything)
}

func TestMalformedChallengeResponse(t *testing.T) {
	avatar, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	gateway := new(clients.MockKVGateway)
	procedure, err := NewProcedure(gateway, interfaces.PlatformTwitter, "my_twitter", avatar, json.RawMessage(`{}`))
	require.NoError(t, err)

	resp := payloadResponse()
	resp.UUID = "not-a-uuid"
	gateway.On("KVPayload", mock.Anything, mock.Anything).Return(resp, nil).Once()

	err = procedure.RequestChallenge(context.Background())
	assert.Error(t, err)
	assert.Equal(t, interfaces.StateCreated, procedure.State())
}

func TestQueriesDelegateToGateway(t *testing.T) {
	avatar, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	gateway := new(clients.MockKVGateway)
	gateway.On("KVQueryByAvatar", mock.Anything, avatar.CompressedHex()).Return(&api.KVQueryResponse{
		Avatar: avatar.CompressedHex(),
	}, nil).Once()

	resp, err := FindByAvatar(context.Background(), gateway, avatar)
	require.NoError(t, err)
	assert.Equal(t, avatar.CompressedHex(), resp.Avatar)

	gateway.On("KVQueryByIdentity", mock.Anything, interfaces.PlatformTwitter, "my_twitter").Return(&api.KVQueryByIdentityResponse{}, nil).Once()
	_, err = FindByIdentity(context.Background(), gateway, interfaces.PlatformTwitter, "my_twitter")
	require.NoError(t, err)

	_, err = FindByIdentity(context.Background(), gateway, interfaces.Platform("myspace"), "x")
	assert.Error(t, err)

	_, err = FindByAvatar(context.Background(), gateway, nil)
	assert.Error(t, err)

	gateway.AssertExpectations(t)
}

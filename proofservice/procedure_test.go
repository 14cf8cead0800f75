package proofservice

import (
	"context"
	"testing"
	"time"

	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/api/clients"
	"github.com/nextdotid/sdk-go/cryptoutils"
	"github.com/nextdotid/sdk-go/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testUUID      = "c6fa1483-1bad-4f07-b661-678b191ab4b3"
	testChallenge = `{"action":"create","created_at":"1700000000","identity":"my_twitter","platform":"twitter","prev":null,"uuid":"c6fa1483-1bad-4f07-b661-678b191ab4b3"}`
)

func payloadResponse() *api.ProofPayloadResponse {
	return &api.ProofPayloadResponse{
		PostContent: map[string]string{"default": "Verifying my avatar. Signature: %SIG_BASE64%"},
		SignPayload: testChallenge,
		UUID:        testUUID,
		CreatedAt:   "1700000000",
	}
}

func newTestProcedure(t *testing.T, gateway api.ProofGateway, platform interfaces.Platform, identity string, action interfaces.Action) (*Procedure, *cryptoutils.Secp256k1KeyPair) {
	t.Helper()
	avatar, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	procedure, err := NewProcedure(gateway, action, platform, identity, avatar)
	require.NoError(t, err)
	return procedure, avatar
}

func TestNewProcedureValidatesInputs(t *testing.T) {
	avatar, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	_, err = NewProcedure(nil, interfaces.Action("merge"), interfaces.PlatformTwitter, "alice", avatar)
	assert.Error(t, err)

	_, err = NewProcedure(nil, interfaces.ActionCreate, interfaces.Platform("myspace"), "alice", avatar)
	assert.Error(t, err)

	_, err = NewProcedure(nil, interfaces.ActionCreate, interfaces.PlatformTwitter, "alice", nil)
	assert.Error(t, err)

	_, err = NewProcedure(nil, interfaces.ActionCreate, interfaces.PlatformEthereum, "not-an-address", avatar)
	assert.Error(t, err)
}

func TestAccessorsBeforeChallenge(t *testing.T) {
	procedure, _ := newTestProcedure(t, nil, interfaces.PlatformTwitter, "alice", interfaces.ActionCreate)
	require.Equal(t, interfaces.StateCreated, procedure.State())

	_, err := procedure.Challenge()
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)
	_, err = procedure.UUID()
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)
	_, err = procedure.CreatedAt()
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)
	_, err = procedure.PostContent()
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)

	err = procedure.Submit(context.Background(), "", nil, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)
}

func TestBindTwitter(t *testing.T) {
	gateway := new(clients.MockProofGateway)
	procedure, avatar := newTestProcedure(t, gateway, interfaces.PlatformTwitter, "my_twitter", interfaces.ActionCreate)

	gateway.On("ProofPayload", mock.Anything, &api.ProofPayloadRequest{
		Action:    interfaces.ActionCreate,
		Platform:  interfaces.PlatformTwitter,
		Identity:  "my_twitter",
		PublicKey: avatar.UncompressedHex(),
	}).Return(payloadResponse(), nil).Once()

	require.NoError(t, procedure.RequestChallenge(context.Background()))
	require.Equal(t, interfaces.StatePayloadRequested, procedure.State())

	challenge, err := procedure.Challenge()
	require.NoError(t, err)
	assert.Equal(t, testChallenge, challenge)
	createdAt, err := procedure.CreatedAt()
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), createdAt)

	// A second challenge request must not fire.
	err = procedure.RequestChallenge(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)

	avatarSig, err := avatar.PersonalSign(challenge)
	require.NoError(t, err)

	var uploaded *api.ProofUploadRequest
	gateway.On("ProofUpload", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		uploaded = args.Get(1).(*api.ProofUploadRequest)
	}).Return(nil).Once()

	_, err = procedure.ProofLocation()
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)

	require.NoError(t, procedure.Submit(context.Background(), "https://twitter.com/my_twitter/status/1", avatarSig, nil))
	assert.Equal(t, interfaces.StateCommitted, procedure.State())

	location, err := procedure.ProofLocation()
	require.NoError(t, err)
	assert.Equal(t, "https://twitter.com/my_twitter/status/1", location)

	require.NotNil(t, uploaded)
	assert.Equal(t, avatar.CompressedHex(), uploaded.PublicKey)
	assert.Equal(t, testUUID, uploaded.UUID)
	assert.Equal(t, "1700000000", uploaded.CreatedAt)
	assert.Equal(t, "https://twitter.com/my_twitter/status/1", uploaded.ProofLocation)
	assert.Equal(t, avatarSig.Base64(), uploaded.Extra.Signature)
	assert.Empty(t, uploaded.Extra.WalletSignature)

	gateway.AssertExpectations(t)
}

func TestTamperedSignatureNeverReachesRegistry(t *testing.T) {
	gateway := new(clients.MockProofGateway)
	procedure, avatar := newTestProcedure(t, gateway, interfaces.PlatformTwitter, "my_twitter", interfaces.ActionCreate)

	gateway.On("ProofPayload", mock.Anything, mock.Anything).Return(payloadResponse(), nil).Once()
	require.NoError(t, procedure.RequestChallenge(context.Background()))

	// Signature over the wrong message recovers a different key.
	badSig, err := avatar.PersonalSign("something else entirely")
	require.NoError(t, err)

	err = procedure.Submit(context.Background(), "", badSig, nil)
	assert.ErrorIs(t, err, interfaces.ErrSignatureMismatch)
	assert.Equal(t, interfaces.StatePayloadRequested, procedure.State())

	err = procedure.Submit(context.Background(), "", nil, nil)
	assert.ErrorIs(t, err, interfaces.ErrPolicyViolation)

	gateway.AssertNotCalled(t, "ProofUpload", mock.Anything, mock.Anything)
}

func TestEthereumCreateRequiresBothSignatures(t *testing.T) {
	wallet, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	identity := wallet.Address().String()

	gateway := new(clients.MockProofGateway)
	procedure, avatar := newTestProcedure(t, gateway, interfaces.PlatformEthereum, identity, interfaces.ActionCreate)

	gateway.On("ProofPayload", mock.Anything, mock.Anything).Return(payloadResponse(), nil).Once()
	require.NoError(t, procedure.RequestChallenge(context.Background()))

	avatarSig, err := avatar.PersonalSign(testChallenge)
	require.NoError(t, err)
	walletSig, err := wallet.PersonalSign(testChallenge)
	require.NoError(t, err)

	// Avatar signature alone does not satisfy the all-of rule.
	err = procedure.Submit(context.Background(), "", avatarSig, nil)
	assert.ErrorIs(t, err, interfaces.ErrPolicyViolation)
	gateway.AssertNotCalled(t, "ProofUpload", mock.Anything, mock.Anything)

	var uploaded *api.ProofUploadRequest
	gateway.On("ProofUpload", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		uploaded = args.Get(1).(*api.ProofUploadRequest)
	}).Return(nil).Once()

	require.NoError(t, procedure.Submit(context.Background(), "", avatarSig, walletSig))
	assert.Equal(t, interfaces.StateCommitted, procedure.State())
	require.NotNil(t, uploaded)
	assert.Equal(t, avatarSig.Base64(), uploaded.Extra.Signature)
	assert.Equal(t, walletSig.Base64(), uploaded.Extra.WalletSignature)
}

func TestEthereumCreateRejectsForeignWallet(t *testing.T) {
	wallet, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	foreign, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	gateway := new(clients.MockProofGateway)
	procedure, avatar := newTestProcedure(t, gateway, interfaces.PlatformEthereum, wallet.Address().String(), interfaces.ActionCreate)

	gateway.On("ProofPayload", mock.Anything, mock.Anything).Return(payloadResponse(), nil).Once()
	require.NoError(t, procedure.RequestChallenge(context.Background()))

	avatarSig, err := avatar.PersonalSign(testChallenge)
	require.NoError(t, err)
	foreignSig, err := foreign.PersonalSign(testChallenge)
	require.NoError(t, err)

	err = procedure.Submit(context.Background(), "", avatarSig, foreignSig)
	assert.ErrorIs(t, err, interfaces.ErrSignatureMismatch)
	gateway.AssertNotCalled(t, "ProofUpload", mock.Anything, mock.Anything)
}

func TestEthereumDeleteAcceptsEitherSignature(t *testing.T) {
	wallet, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	identity := wallet.Address().String()

	for name, sign := range map[string]func(avatar *cryptoutils.Secp256k1KeyPair) (cryptoutils.Signature, cryptoutils.Signature){
		"avatar only": func(avatar *cryptoutils.Secp256k1KeyPair) (cryptoutils.Signature, cryptoutils.Signature) {
			sig, err := avatar.PersonalSign(testChallenge)
			require.NoError(t, err)
			return sig, nil
		},
		"wallet only": func(avatar *cryptoutils.Secp256k1KeyPair) (cryptoutils.Signature, cryptoutils.Signature) {
			sig, err := wallet.PersonalSign(testChallenge)
			require.NoError(t, err)
			return nil, sig
		},
	} {
		t.Run(name, func(t *testing.T) {
			gateway := new(clients.MockProofGateway)
			procedure, avatar := newTestProcedure(t, gateway, interfaces.PlatformEthereum, identity, interfaces.ActionDelete)

			gateway.On("ProofPayload", mock.Anything, mock.Anything).Return(payloadResponse(), nil).Once()
			require.NoError(t, procedure.RequestChallenge(context.Background()))

			gateway.On("ProofUpload", mock.Anything, mock.Anything).Return(nil).Once()

			avatarSig, walletSig := sign(avatar)
			require.NoError(t, procedure.Submit(context.Background(), "", avatarSig, walletSig))
			assert.Equal(t, interfaces.StateCommitted, procedure.State())
		})
	}
}

func TestEthereumDeleteWithNoValidSignature(t *testing.T) {
	wallet, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	gateway := new(clients.MockProofGateway)
	procedure, _ := newTestProcedure(t, gateway, interfaces.PlatformEthereum, wallet.Address().String(), interfaces.ActionDelete)

	gateway.On("ProofPayload", mock.Anything, mock.Anything).Return(payloadResponse(), nil).Once()
	require.NoError(t, procedure.RequestChallenge(context.Background()))

	err = procedure.Submit(context.Background(), "", nil, nil)
	assert.ErrorIs(t, err, interfaces.ErrPolicyViolation)
	gateway.AssertNotCalled(t, "ProofUpload", mock.Anything, mock.Anything)
}

func TestMalformedChallengeResponse(t *testing.T) {
	gateway := new(clients.MockProofGateway)
	procedure, _ := newTestProcedure(t, gateway, interfaces.PlatformTwitter, "alice", interfaces.ActionCreate)

	resp := payloadResponse()
	resp.UUID = "not-a-uuid"
	gateway.On("ProofPayload", mock.Anything, mock.Anything).Return(resp, nil).Once()

	err := procedure.RequestChallenge(context.Background())
	assert.Error(t, err)
	assert.Equal(t, interfaces.StateCreated, procedure.State())

	resp = payloadResponse()
	resp.CreatedAt = "yesterday"
	gateway.On("ProofPayload", mock.Anything, mock.Anything).Return(resp, nil).Once()

	err = procedure.RequestChallenge(context.Background())
	assert.Error(t, err)
	assert.Equal(t, interfaces.StateCreated, procedure.State())
}

func TestRemoteRejectionLeavesLocallyValidated(t *testing.T) {
	gateway := new(clients.MockProofGateway)
	procedure, avatar := newTestProcedure(t, gateway, interfaces.PlatformTwitter, "my_twitter", interfaces.ActionCreate)

	gateway.On("ProofPayload", mock.Anything, mock.Anything).Return(payloadResponse(), nil).Once()
	require.NoError(t, procedure.RequestChallenge(context.Background()))

	avatarSig, err := avatar.PersonalSign(testChallenge)
	require.NoError(t, err)

	remoteErr := &api.RemoteError{StatusCode: 400, Body: "proof post not found"}
	gateway.On("ProofUpload", mock.Anything, mock.Anything).Return(remoteErr).Once()

	err = procedure.Submit(context.Background(), "https://example.invalid/post", avatarSig, nil)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*api.RemoteError))
	assert.Equal(t, interfaces.StateLocallyValidated, procedure.State())

	// The procedure cannot be resubmitted.
	err = procedure.Submit(context.Background(), "", avatarSig, nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidState)
}

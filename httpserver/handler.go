package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nextdotid/sdk-go/api"
	"github.com/nextdotid/sdk-go/cryptoutils"
	"github.com/nextdotid/sdk-go/interfaces"
	"github.com/nextdotid/sdk-go/policy"
)

const queryPageSize = 20

// challengeTTL bounds how long an issued challenge stays redeemable.
const challengeTTL = time.Hour

// Handler implements an in-memory registry with the ProofService and
// KVService wire surface. It validates uploads with the same signature and
// policy rules the SDK applies locally, which makes it a faithful endpoint
// for integration tests and local development.
type Handler struct {
	log *slog.Logger
	now func() time.Time

	mu         sync.Mutex
	challenges map[string]*challenge
	proofs     map[string][]proofRecord
	kv         map[string]map[kvKey]json.RawMessage
}

type challenge struct {
	action    interfaces.Action
	platform  interfaces.Platform
	identity  string
	avatarHex string
	patch     json.RawMessage
	payload   string
	issuedAt  time.Time
}

type proofRecord struct {
	platform  interfaces.Platform
	identity  string
	createdAt time.Time
}

type kvKey struct {
	platform interfaces.Platform
	identity string
}

// NewHandler creates an empty registry.
func NewHandler(log *slog.Logger) *Handler {
	return &Handler{
		log:        log,
		now:        time.Now,
		challenges: make(map[string]*challenge),
		proofs:     make(map[string][]proofRecord),
		kv:         make(map[string]map[kvKey]json.RawMessage),
	}
}

// signPayload is the canonical challenge document. Field order is fixed so
// clients sign a stable byte string.
type signPayload struct {
	Action    interfaces.Action   `json:"action"`
	CreatedAt string              `json:"created_at"`
	Identity  string              `json:"identity"`
	Platform  interfaces.Platform `json:"platform"`
	Prev      *string             `json:"prev"`
	UUID      string              `json:"uuid"`
}

// HandleProofPayload issues a challenge for a proof modification.
func (h *Handler) HandleProofPayload(w http.ResponseWriter, r *http.Request) {
	var req api.ProofPayloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return
	}
	if err := req.Action.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Platform.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	avatar, err := cryptoutils.NewKeyPairFromPublicHex(req.PublicKey)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed public_key: %w", err))
		return
	}

	id := uuid.Must(uuid.NewRandom()).String()
	issuedAt := h.now().UTC()
	payloadBytes, err := json.Marshal(&signPayload{
		Action:    req.Action,
		CreatedAt: strconv.FormatInt(issuedAt.Unix(), 10),
		Identity:  req.Identity,
		Platform:  req.Platform,
		Prev:      nil,
		UUID:      id,
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.mu.Lock()
	h.challenges[id] = &challenge{
		action:    req.Action,
		platform:  req.Platform,
		identity:  req.Identity,
		avatarHex: avatar.CompressedHex(),
		payload:   string(payloadBytes),
		issuedAt:  issuedAt,
	}
	h.mu.Unlock()

	h.log.Info("Issued proof challenge",
		"uuid", id, "action", req.Action.String(), "platform", req.Platform.String())

	h.writeJSON(w, http.StatusOK, &api.ProofPayloadResponse{
		PostContent: map[string]string{
			"default": fmt.Sprintf("Verifying my avatar for %s. Signature: %%SIG_BASE64%%", req.Identity),
		},
		SignPayload: string(payloadBytes),
		UUID:        id,
		CreatedAt:   strconv.FormatInt(issuedAt.Unix(), 10),
	})
}

// HandleProofUpload verifies and commits a finalized proof modification.
func (h *Handler) HandleProofUpload(w http.ResponseWriter, r *http.Request) {
	var req api.ProofUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return
	}

	avatar, err := cryptoutils.NewKeyPairFromPublicHex(req.PublicKey)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed public_key: %w", err))
		return
	}

	h.mu.Lock()
	ch, ok := h.challenges[req.UUID]
	h.mu.Unlock()
	if !ok || h.now().Sub(ch.issuedAt) > challengeTTL {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown or expired uuid %q", req.UUID))
		return
	}
	if ch.action != req.Action || ch.platform != req.Platform || ch.identity != req.Identity {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("upload does not match the challenged modification"))
		return
	}
	if ch.avatarHex != avatar.CompressedHex() {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("public_key does not match the challenged avatar"))
		return
	}

	if err := h.verifyProofSignatures(ch, avatar, &req.Extra); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	h.mu.Lock()
	delete(h.challenges, req.UUID)
	switch req.Action {
	case interfaces.ActionCreate:
		h.proofs[ch.avatarHex] = append(h.removeProofLocked(ch), proofRecord{
			platform:  ch.platform,
			identity:  ch.identity,
			createdAt: ch.issuedAt,
		})
	case interfaces.ActionDelete:
		h.proofs[ch.avatarHex] = h.removeProofLocked(ch)
	}
	h.mu.Unlock()

	h.log.Info("Committed proof modification",
		"uuid", req.UUID, "action", req.Action.String(),
		"platform", req.Platform.String(), "identity", req.Identity)

	w.WriteHeader(http.StatusCreated)
}

// removeProofLocked filters the avatar's records down to those not covered
// by the challenge. Callers hold h.mu.
func (h *Handler) removeProofLocked(ch *challenge) []proofRecord {
	kept := make([]proofRecord, 0, len(h.proofs[ch.avatarHex]))
	for _, rec := range h.proofs[ch.avatarHex] {
		if rec.platform == ch.platform && rec.identity == ch.identity {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

// verifyProofSignatures applies the same policy rule the SDK checks locally.
func (h *Handler) verifyProofSignatures(ch *challenge, avatar *cryptoutils.Secp256k1KeyPair, extra *api.ProofUploadExtra) error {
	rule := policy.RequiredSignatures(ch.platform, ch.action)

	avatarOK, avatarErr := h.verifySignerMatches(extra.Signature, ch.payload, func(signer *cryptoutils.Secp256k1KeyPair) bool {
		return signer.Equal(avatar)
	})

	if !rule.RequireSecondary {
		if !avatarOK {
			return fmt.Errorf("invalid avatar signature: %w", avatarErr)
		}
		return nil
	}

	walletOK, walletErr := h.verifySignerMatches(extra.WalletSignature, ch.payload, func(signer *cryptoutils.Secp256k1KeyPair) bool {
		expected, err := cryptoutils.NewEthereumAddressFromHex(ch.identity)
		if err != nil {
			return false
		}
		return signer.Address().Equal(expected)
	})

	switch rule.Mode {
	case policy.AllOf:
		if !avatarOK {
			return fmt.Errorf("invalid avatar signature: %w", avatarErr)
		}
		if !walletOK {
			return fmt.Errorf("invalid wallet signature: %w", walletErr)
		}
	case policy.AnyOf:
		if !avatarOK && !walletOK {
			return fmt.Errorf("neither signature verifies: avatar: %v, wallet: %v", avatarErr, walletErr)
		}
	}
	return nil
}

// verifySignerMatches decodes a base64 signature over the payload and tests
// the recovered key with accept. A missing signature is a plain failure.
func (h *Handler) verifySignerMatches(sigBase64, payload string, accept func(*cryptoutils.Secp256k1KeyPair) bool) (bool, error) {
	if sigBase64 == "" {
		return false, fmt.Errorf("signature missing")
	}
	sig, err := cryptoutils.NewSignatureFromBase64(sigBase64)
	if err != nil {
		return false, err
	}
	signer, err := cryptoutils.RecoverFromPersonalSignature(sig, payload)
	if err != nil {
		return false, err
	}
	if !accept(signer) {
		return false, fmt.Errorf("signer mismatch")
	}
	return true, nil
}

// HandleProofQuery returns one page of avatars bound to an identity.
func (h *Handler) HandleProofQuery(w http.ResponseWriter, r *http.Request) {
	platform := interfaces.Platform(r.URL.Query().Get("platform"))
	if err := platform.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	identity := r.URL.Query().Get("identity")
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	h.mu.Lock()
	var matches []api.AvatarWithProofs
	for avatarHex, records := range h.proofs {
		if !avatarMatches(avatarHex, records, platform, identity) {
			continue
		}
		entry := api.AvatarWithProofs{Avatar: avatarHex, Proofs: make([]api.SingleProof, 0, len(records))}
		for _, rec := range records {
			entry.Proofs = append(entry.Proofs, api.SingleProof{
				Platform:      rec.platform,
				Identity:      rec.identity,
				CreatedAt:     strconv.FormatInt(rec.createdAt.Unix(), 10),
				LastCheckedAt: strconv.FormatInt(h.now().Unix(), 10),
				IsValid:       true,
			})
		}
		matches = append(matches, entry)
	}
	h.mu.Unlock()

	start := (page - 1) * queryPageSize
	end := start + queryPageSize
	if start > len(matches) {
		start = len(matches)
	}
	if end > len(matches) {
		end = len(matches)
	}
	next := 0
	if end < len(matches) {
		next = page + 1
	}

	h.writeJSON(w, http.StatusOK, &api.ProofQueryResponse{
		Pagination: api.Pagination{
			Total:   uint64(len(matches)),
			Per:     queryPageSize,
			Current: page,
			Next:    next,
		},
		IDs: matches[start:end],
	})
}

func avatarMatches(avatarHex string, records []proofRecord, platform interfaces.Platform, identity string) bool {
	if platform == interfaces.PlatformNextID {
		return avatarHex == identity
	}
	for _, rec := range records {
		if rec.platform == platform && rec.identity == identity {
			return true
		}
	}
	return false
}

// kvSignPayload mirrors signPayload for kv patches.
type kvSignPayload struct {
	Avatar    string              `json:"avatar"`
	CreatedAt int64               `json:"created_at"`
	Identity  string              `json:"identity"`
	Patch     json.RawMessage     `json:"patch"`
	Platform  interfaces.Platform `json:"platform"`
	UUID      string              `json:"uuid"`
}

// HandleKVPayload issues a challenge for a kv patch.
func (h *Handler) HandleKVPayload(w http.ResponseWriter, r *http.Request) {
	var req api.KVPayloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return
	}
	if err := req.Platform.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	avatar, err := cryptoutils.NewKeyPairFromPublicHex(req.Avatar)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed avatar: %w", err))
		return
	}
	if !json.Valid(req.Patch) {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("patch is not valid JSON"))
		return
	}

	id := uuid.Must(uuid.NewRandom()).String()
	issuedAt := h.now().UTC()
	payloadBytes, err := json.Marshal(&kvSignPayload{
		Avatar:    avatar.CompressedHex(),
		CreatedAt: issuedAt.Unix(),
		Identity:  req.Identity,
		Patch:     req.Patch,
		Platform:  req.Platform,
		UUID:      id,
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.mu.Lock()
	h.challenges[id] = &challenge{
		platform:  req.Platform,
		identity:  req.Identity,
		avatarHex: avatar.CompressedHex(),
		patch:     req.Patch,
		payload:   string(payloadBytes),
		issuedAt:  issuedAt,
	}
	h.mu.Unlock()

	h.log.Info("Issued kv challenge", "uuid", id, "platform", req.Platform.String())

	h.writeJSON(w, http.StatusOK, &api.KVPayloadResponse{
		UUID:        id,
		SignPayload: string(payloadBytes),
		CreatedAt:   issuedAt.Unix(),
	})
}

// HandleKVUpload verifies and applies a finalized kv patch.
func (h *Handler) HandleKVUpload(w http.ResponseWriter, r *http.Request) {
	var req api.KVUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed request body: %w", err))
		return
	}

	avatar, err := cryptoutils.NewKeyPairFromPublicHex(req.Avatar)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed avatar: %w", err))
		return
	}

	h.mu.Lock()
	ch, ok := h.challenges[req.UUID]
	h.mu.Unlock()
	if !ok || h.now().Sub(ch.issuedAt) > challengeTTL {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown or expired uuid %q", req.UUID))
		return
	}
	if ch.avatarHex != avatar.CompressedHex() || ch.platform != req.Platform || ch.identity != req.Identity {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("upload does not match the challenged patch"))
		return
	}

	ok, sigErr := h.verifySignerMatches(req.Signature, ch.payload, func(signer *cryptoutils.Secp256k1KeyPair) bool {
		return signer.Equal(avatar)
	})
	if !ok {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid avatar signature: %w", sigErr))
		return
	}

	h.mu.Lock()
	delete(h.challenges, req.UUID)
	records, ok := h.kv[ch.avatarHex]
	if !ok {
		records = make(map[kvKey]json.RawMessage)
		h.kv[ch.avatarHex] = records
	}
	key := kvKey{platform: ch.platform, identity: ch.identity}
	records[key] = applyMergePatch(records[key], ch.patch)
	h.mu.Unlock()

	h.log.Info("Committed kv patch",
		"uuid", req.UUID, "platform", req.Platform.String(), "identity", req.Identity)

	w.WriteHeader(http.StatusCreated)
}

// HandleKVQuery returns all kv records under one avatar.
func (h *Handler) HandleKVQuery(w http.ResponseWriter, r *http.Request) {
	avatarHex := r.URL.Query().Get("avatar")
	avatar, err := cryptoutils.NewKeyPairFromPublicHex(avatarHex)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed avatar: %w", err))
		return
	}

	resp := &api.KVQueryResponse{Avatar: avatar.CompressedHex(), Proofs: []api.KVProof{}}
	h.mu.Lock()
	for key, content := range h.kv[avatar.CompressedHex()] {
		resp.Proofs = append(resp.Proofs, api.KVProof{
			Platform: key.platform,
			Identity: key.identity,
			Content:  content,
		})
	}
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleKVQueryByIdentity returns the content every avatar holds for one
// platform identity.
func (h *Handler) HandleKVQueryByIdentity(w http.ResponseWriter, r *http.Request) {
	platform := interfaces.Platform(r.URL.Query().Get("platform"))
	if err := platform.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	identity := r.URL.Query().Get("identity")

	resp := &api.KVQueryByIdentityResponse{Values: []api.KVQueryByIdentityValue{}}
	h.mu.Lock()
	key := kvKey{platform: platform, identity: identity}
	for avatarHex, records := range h.kv {
		if content, ok := records[key]; ok {
			resp.Values = append(resp.Values, api.KVQueryByIdentityValue{
				Avatar:  avatarHex,
				Content: content,
			})
		}
	}
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, resp)
}

// applyMergePatch applies an RFC 7396 merge document: object members
// overwrite recursively, explicit nulls delete, non-objects replace.
func applyMergePatch(target, patch json.RawMessage) json.RawMessage {
	var patchObj map[string]json.RawMessage
	if err := json.Unmarshal(patch, &patchObj); err != nil || patchObj == nil {
		return patch
	}

	targetObj := map[string]json.RawMessage{}
	if len(target) > 0 {
		if err := json.Unmarshal(target, &targetObj); err != nil {
			targetObj = map[string]json.RawMessage{}
		}
	}

	for name, value := range patchObj {
		if string(value) == "null" {
			delete(targetObj, name)
			continue
		}
		targetObj[name] = applyMergePatch(targetObj[name], value)
	}

	merged, err := json.Marshal(targetObj)
	if err != nil {
		return target
	}
	return merged
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.log.Debug("Rejecting request", "status", status, "err", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
}

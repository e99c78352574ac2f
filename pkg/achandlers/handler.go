package achandlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
	"github.com/nbuckles13/dark-tower-sub010/internal/httpserver"
	"github.com/nbuckles13/dark-tower-sub010/pkg/ackeys"
	"github.com/nbuckles13/dark-tower-sub010/pkg/actoken"
)

// Handler wires the AC's token, key, and admin HTTP endpoints.
type Handler struct {
	logger    *slog.Logger
	tokens    *actoken.Service
	signer    *actoken.Signer
	keyStore  *ackeys.Store
	rotator   *ackeys.Rotator
	clients   actoken.ClientStore
	bcryptCost int
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, tokens *actoken.Service, signer *actoken.Signer, keyStore *ackeys.Store, rotator *ackeys.Rotator, clients actoken.ClientStore, bcryptCost int) *Handler {
	return &Handler{logger: logger, tokens: tokens, signer: signer, keyStore: keyStore, rotator: rotator, clients: clients, bcryptCost: bcryptCost}
}

// serviceTokenRequest is accepted as JSON; OAuth2 form-encoded bodies are
// also supported via parseServiceTokenRequest.
type serviceTokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// HandleServiceToken implements POST /api/v1/auth/service/token: OAuth
// 2.0 client-credentials flow, body form or JSON.
func (h *Handler) HandleServiceToken(w http.ResponseWriter, r *http.Request) {
	req, err := parseServiceTokenRequest(r)
	if err != nil {
		httpserver.RespondInvalidClient(w)
		return
	}

	scopes := httpserver.SplitScopes(req.Scope)
	token, expiresAt, err := h.tokens.IssueServiceToken(r.Context(), req.ClientID, req.ClientSecret, scopes)
	if err != nil {
		// Spec §4.4 and testable property S1: always the single generic
		// body, regardless of internal cause.
		h.logger.Warn("service token issuance failed", "error", err)
		httpserver.RespondInvalidClient(w)
		return
	}

	httpserver.Respond(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
	})
}

func parseServiceTokenRequest(r *http.Request) (serviceTokenRequest, error) {
	if r.Header.Get("Content-Type") == "application/json" {
		var req serviceTokenRequest
		if err := httpserver.Decode(r, &req); err != nil {
			return serviceTokenRequest{}, err
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return serviceTokenRequest{}, err
	}
	return serviceTokenRequest{
		GrantType:    r.FormValue("grant_type"),
		ClientID:     r.FormValue("client_id"),
		ClientSecret: r.FormValue("client_secret"),
		Scope:        r.FormValue("scope"),
	}, nil
}

// internalTokenRequest is the shared shape for meeting/guest token minting.
type internalTokenRequest struct {
	MeetingID       string `json:"meeting_id" validate:"required,dt_id"`
	Role            string `json:"role,omitempty"`
	ParticipantType string `json:"participant_type,omitempty"`
	DisplayName     string `json:"display_name,omitempty" validate:"max=100"`
	WaitingRoom     bool   `json:"waiting_room,omitempty"`
	TTLSeconds      int    `json:"ttl_seconds,omitempty"`
}

type internalTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// HandleMeetingToken implements POST /api/v1/auth/internal/meeting-token.
// Guarded by RequireServiceScope(internal:meeting-token).
func (h *Handler) HandleMeetingToken(w http.ResponseWriter, r *http.Request) {
	h.mintInternal(w, r, actoken.TokenMeeting)
}

// HandleGuestToken implements POST /api/v1/auth/internal/guest-token.
// Guarded by RequireServiceScope(internal:guest-token).
func (h *Handler) HandleGuestToken(w http.ResponseWriter, r *http.Request) {
	h.mintInternal(w, r, actoken.TokenGuest)
}

func (h *Handler) mintInternal(w http.ResponseWriter, r *http.Request, tt actoken.TokenType) {
	var req internalTokenRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	// ttl_seconds is capped at 900 regardless of request (spec §4.5).
	ttl := time.Duration(req.TTLSeconds) * time.Second
	const hardCap = 900 * time.Second
	if ttl <= 0 || ttl > hardCap {
		ttl = hardCap
	}

	claims := actoken.Claims{
		TokenType:       tt,
		MeetingID:       req.MeetingID,
		Role:            req.Role,
		ParticipantType: req.ParticipantType,
		DisplayName:     req.DisplayName,
		WaitingRoom:     req.WaitingRoom,
	}

	token, expiresAt, err := h.signer.Mint(r.Context(), req.MeetingID, claims, ttl)
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "minting internal token"))
		return
	}

	httpserver.Respond(w, http.StatusOK, internalTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// HandleJWKS implements GET /.well-known/jwks.json: public, stripped of
// private parameters by construction (see pkg/ackeys.BuildJWKS).
func (h *Handler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keyStore.ValidatorKeys(r.Context(), time.Now().UTC())
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "loading validator keys"))
		return
	}
	set, err := ackeys.BuildJWKS(keys)
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "building jwks"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

// HandleRotateKeys implements POST /internal/rotate-keys: admin-scoped,
// force-rotates the signing key. RateLimited rotation attempts surface as
// 429; JWKS readers never observe rotation errors (spec §4.3).
func (h *Handler) HandleRotateKeys(w http.ResponseWriter, r *http.Request) {
	keyID, err := h.rotator.Rotate(r.Context(), true)
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"key_id": keyID})
}

// registerClientRequest is the admin client-registration body.
type registerClientRequest struct {
	ClientID string   `json:"client_id" validate:"required,dt_id"`
	Scopes   []string `json:"scopes" validate:"required,min=1"`
}

type registerClientResponse struct {
	ClientID string `json:"client_id"`
	Secret   string `json:"secret"`
}

// HandleRegisterClient implements POST /api/v1/admin/services/register:
// admin scope; secret returned exactly once (SPEC_FULL.md supplemented
// feature, modeled on the teacher's API-key issuance flow).
func (h *Handler) HandleRegisterClient(w http.ResponseWriter, r *http.Request) {
	var req registerClientRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	rawSecret, err := actoken.GenerateClientSecret(32)
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "generating client secret"))
		return
	}
	hash, err := actoken.HashClientSecret(rawSecret, h.bcryptCost)
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "hashing client secret"))
		return
	}
	if err := h.clients.Create(r.Context(), req.ClientID, hash, req.Scopes); err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "creating client"))
		return
	}

	httpserver.Respond(w, http.StatusCreated, registerClientResponse{ClientID: req.ClientID, Secret: rawSecret})
}

// HandleRotateClientSecret implements POST
// /api/v1/admin/services/rotate-secret: admin scope; issues and stores a
// fresh secret, returning it exactly once.
func (h *Handler) HandleRotateClientSecret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"client_id" validate:"required,dt_id"`
	}
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	rawSecret, err := actoken.GenerateClientSecret(32)
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "generating client secret"))
		return
	}
	hash, err := actoken.HashClientSecret(rawSecret, h.bcryptCost)
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "hashing client secret"))
		return
	}
	if err := h.clients.UpdateSecretHash(r.Context(), req.ClientID, hash); err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "rotating client secret"))
		return
	}

	httpserver.Respond(w, http.StatusOK, registerClientResponse{ClientID: req.ClientID, Secret: rawSecret})
}

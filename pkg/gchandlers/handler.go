// Package gchandlers implements the GC's public HTTP surface (C8):
// meeting join, guest-token issuance, the current-user endpoint, and
// host-only settings updates.
package gchandlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
	"github.com/nbuckles13/dark-tower-sub010/internal/httpserver"
	"github.com/nbuckles13/dark-tower-sub010/pkg/acclient"
	"github.com/nbuckles13/dark-tower-sub010/pkg/actoken"
	"github.com/nbuckles13/dark-tower-sub010/pkg/gcassign"
	"github.com/nbuckles13/dark-tower-sub010/pkg/meeting"
	"github.com/nbuckles13/dark-tower-sub010/pkg/rpc"
)

// Handler wires the GC's meeting/guest HTTP endpoints.
type Handler struct {
	logger      *slog.Logger
	meetings    *meeting.Store
	assigner    *gcassign.Assigner
	ac          *acclient.Client
	rateLimiter *RateLimiter
	validator   *actoken.Validator
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, meetings *meeting.Store, assigner *gcassign.Assigner, ac *acclient.Client, rateLimiter *RateLimiter, validator *actoken.Validator) *Handler {
	return &Handler{logger: logger, meetings: meetings, assigner: assigner, ac: ac, rateLimiter: rateLimiter, validator: validator}
}

// Routes registers every C8 endpoint onto r, including the auth
// middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/v1/meetings/{code}", requireUserToken(h.validator, h.logger)(http.HandlerFunc(h.HandleGetMeeting)).ServeHTTP)
	r.Post("/v1/meetings/{code}/guest-token", h.HandleGuestToken)
	r.Get("/v1/me", requireUserToken(h.validator, h.logger)(http.HandlerFunc(h.HandleMe)).ServeHTTP)
	r.Patch("/v1/meetings/{id}/settings", requireUserToken(h.validator, h.logger)(http.HandlerFunc(h.HandleUpdateSettings)).ServeHTTP)
}

type mcAssignmentView struct {
	MCID                 string `json:"mc_id"`
	WebtransportEndpoint string `json:"webtransport_endpoint,omitempty"`
	GRPCEndpoint         string `json:"grpc_endpoint"`
}

type joinResponse struct {
	Token         string           `json:"token"`
	ExpiresIn     int              `json:"expires_in"`
	MeetingID     string           `json:"meeting_id"`
	MeetingName   string           `json:"meeting_name"`
	MCAssignment  mcAssignmentView `json:"mc_assignment"`
}

// HandleGetMeeting implements GET /v1/meetings/{code}.
func (h *Handler) HandleGetMeeting(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	m, err := h.loadJoinableMeetingPublic(w, r, code)
	if err != nil {
		return
	}

	result, err := h.assigner.Assign(r.Context(), gcassign.Request{
		MeetingID:   m.ID,
		MeetingCode: m.Code,
		Settings: rpc.MeetingSettings{
			AllowExternalParticipants: m.AllowExternalParticipants,
			AllowGuests:               m.AllowGuests,
		},
		EstimatedParticipantsPerMeeting: 1,
	})
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, err)
		return
	}

	userCtx, _ := claimsFromContext(r.Context())
	minted, err := h.ac.MintMeetingToken(r.Context(), acclient.MintTokenRequest{
		MeetingID:       m.ID,
		Role:            "participant",
		ParticipantType: "authenticated",
		DisplayName:     userCtx.Subject,
	})
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, joinResponse{
		Token:       minted.Token,
		ExpiresIn:   int(time.Until(minted.ExpiresAt).Seconds()),
		MeetingID:   m.ID,
		MeetingName: m.Name,
		MCAssignment: mcAssignmentView{
			MCID:                 result.ControllerID,
			WebtransportEndpoint: result.WebtransportEndpoint,
			GRPCEndpoint:         result.GRPCEndpoint,
		},
	})
}

type guestTokenRequest struct {
	DisplayName  string `json:"display_name" validate:"required,min=1,max=100"`
	CaptchaToken string `json:"captcha_token" validate:"required"`
}

// HandleGuestToken implements POST /v1/meetings/{code}/guest-token. Public,
// rate-limited.
func (h *Handler) HandleGuestToken(w http.ResponseWriter, r *http.Request) {
	ip := httpserver.ClientIP(r)
	allowed, err := h.rateLimiter.Allow(r.Context(), ip)
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "checking rate limit"))
		return
	}
	if !allowed {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.RateLimited, nil, "guest-token rate limit exceeded for %s", ip))
		return
	}

	var req guestTokenRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DisplayName) == "" {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.Validation, nil, "display_name must not be blank"))
		return
	}

	code := chi.URLParam(r, "code")
	m, err := h.loadJoinableMeetingPublic(w, r, code)
	if err != nil {
		return
	}
	if !m.AllowGuests {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.Forbidden, nil, "meeting %q does not allow guests", m.ID))
		return
	}

	result, err := h.assigner.Assign(r.Context(), gcassign.Request{
		MeetingID:   m.ID,
		MeetingCode: m.Code,
		Settings: rpc.MeetingSettings{
			AllowExternalParticipants: m.AllowExternalParticipants,
			AllowGuests:               m.AllowGuests,
		},
		EstimatedParticipantsPerMeeting: 1,
	})
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, err)
		return
	}

	minted, err := h.ac.MintGuestToken(r.Context(), acclient.MintTokenRequest{
		MeetingID:       m.ID,
		Role:            "guest",
		ParticipantType: "guest",
		DisplayName:     req.DisplayName,
		WaitingRoom:     true,
	})
	if err != nil {
		httpserver.RespondAPIError(w, h.logger, err)
		return
	}

	httpserver.Respond(w, http.StatusOK, joinResponse{
		Token:       minted.Token,
		ExpiresIn:   int(time.Until(minted.ExpiresAt).Seconds()),
		MeetingID:   m.ID,
		MeetingName: m.Name,
		MCAssignment: mcAssignmentView{
			MCID:                 result.ControllerID,
			WebtransportEndpoint: result.WebtransportEndpoint,
			GRPCEndpoint:         result.GRPCEndpoint,
		},
	})
}

// HandleMe implements GET /v1/me. The sub field is sensitive; it is never
// logged (see internal/secret and this handler's own lack of a log call).
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userCtx, _ := claimsFromContext(r.Context())
	httpserver.Respond(w, http.StatusOK, map[string]string{"sub": userCtx.Subject})
}

type settingsRequest struct {
	Name                      *string `json:"name,omitempty"`
	AllowExternalParticipants *bool   `json:"allow_external_participants,omitempty"`
	AllowGuests               *bool   `json:"allow_guests,omitempty"`
}

// HandleUpdateSettings implements PATCH /v1/meetings/{id}/settings,
// host-only.
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.meetings.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, meeting.ErrNotFound) {
			httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.NotFound, err, "meeting %q not found", id))
			return
		}
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "loading meeting"))
		return
	}

	userCtx, _ := claimsFromContext(r.Context())
	if m.HostParticipantID != userCtx.Subject {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.Forbidden, nil, "only the host may update meeting settings"))
		return
	}

	var req settingsRequest
	if err := httpserver.Decode(r, &req); err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.Validation, err, "decoding settings update"))
		return
	}
	update := meeting.SettingsUpdate{Name: req.Name, AllowExternalParticipants: req.AllowExternalParticipants, AllowGuests: req.AllowGuests}
	if update.Empty() {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.Validation, nil, "settings update body must not be empty"))
		return
	}

	if err := h.meetings.UpdateSettings(r.Context(), id, update); err != nil {
		httpserver.RespondAPIError(w, h.logger, apierr.New(apierr.InternalError, err, "updating meeting settings"))
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]string{"status": "updated"})
}

// loadJoinableMeetingPublic loads a meeting for a join attempt, applying
// the 404-for-unknown-or-ended policy (spec §4.8: "to avoid enumeration").
func (h *Handler) loadJoinableMeetingPublic(w http.ResponseWriter, r *http.Request, code string) (meeting.Meeting, error) {
	m, err := h.meetings.GetByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, meeting.ErrNotFound) {
			apiErr := apierr.New(apierr.NotFound, err, "meeting code %q not found", code)
			httpserver.RespondAPIError(w, h.logger, apiErr)
			return meeting.Meeting{}, apiErr
		}
		apiErr := apierr.New(apierr.InternalError, err, "loading meeting")
		httpserver.RespondAPIError(w, h.logger, apiErr)
		return meeting.Meeting{}, apiErr
	}
	if m.Ended() {
		apiErr := apierr.New(apierr.NotFound, nil, "meeting %q has ended", m.ID)
		httpserver.RespondAPIError(w, h.logger, apiErr)
		return meeting.Meeting{}, apiErr
	}
	return m, nil
}

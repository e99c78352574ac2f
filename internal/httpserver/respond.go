package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// apiErrorBody is the envelope every error response uses.
type apiErrorBody struct {
	Error apiErrorDetail `json:"error"`
}

type apiErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondAPIError logs the full wrapped error chain server-side at the
// right level, then writes only the canned client message for its kind.
// This is the single funnel every handler should use instead of writing
// raw error strings into a response.
func RespondAPIError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apierr.KindOf(err)
	status := apierr.HTTPStatus(kind)

	if status >= 500 {
		logger.Error("request failed", "kind", kind, "error", err)
	} else {
		logger.Warn("request rejected", "kind", kind, "error", err)
	}

	Respond(w, status, apiErrorBody{Error: apiErrorDetail{
		Code:    strings.ToUpper(string(kind)),
		Message: apierr.ClientMessage(kind),
	}})
}

// RespondInvalidClient writes the single generic body spec §4.4 and §8.1
// require for every service-token issuance failure path, regardless of
// cause.
func RespondInvalidClient(w http.ResponseWriter) {
	Respond(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
}

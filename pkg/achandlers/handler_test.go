package achandlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nbuckles13/dark-tower-sub010/internal/secret"
	"github.com/nbuckles13/dark-tower-sub010/pkg/actoken"
)

type emptyClientStore struct{}

func (emptyClientStore) GetByID(context.Context, string) (actoken.OAuthClient, error) {
	return actoken.OAuthClient{}, actoken.ErrClientNotFound
}
func (emptyClientStore) Create(context.Context, string, string, []string) error { return nil }
func (emptyClientStore) UpdateSecretHash(context.Context, string, string) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestHandleServiceToken_GenericErrorBody exercises testable property S1:
// whatever the internal cause, the response body is exactly
// {"error": "invalid_client"}.
func TestHandleServiceToken_GenericErrorBody(t *testing.T) {
	tokenSvc, err := actoken.NewService(emptyClientStore{}, nil, actoken.BcryptCostMin, secret.New("a-sufficiently-long-hash-secret"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	h := NewHandler(discardLogger(), tokenSvc, nil, nil, nil, emptyClientStore{}, actoken.BcryptCostMin)

	form := url.Values{"client_id": {"nope"}, "client_secret": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/service/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.HandleServiceToken(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"] != "invalid_client" {
		t.Fatalf(`expected {"error":"invalid_client"}, got %v`, body)
	}
	if len(body) != 1 {
		t.Fatalf("expected body to contain only the error field, got %v", body)
	}
}

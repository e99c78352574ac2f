// Package acclient is the GC's (and MC's) HTTP client for AC's internal
// token-minting endpoints (C5), authenticated with the service bearer
// token held by pkg/tokenmanager.
package acclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
	"github.com/nbuckles13/dark-tower-sub010/pkg/tokenmanager"
)

// Client calls AC's internal meeting/guest token endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     *tokenmanager.Reader
}

// New builds a Client. baseURL is AC's address, e.g. "https://ac.internal".
func New(httpClient *http.Client, baseURL string, tokens *tokenmanager.Reader) *Client {
	return &Client{httpClient: httpClient, baseURL: baseURL, tokens: tokens}
}

// MintTokenRequest mirrors achandlers.internalTokenRequest.
type MintTokenRequest struct {
	MeetingID       string `json:"meeting_id"`
	Role            string `json:"role,omitempty"`
	ParticipantType string `json:"participant_type,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	WaitingRoom     bool   `json:"waiting_room,omitempty"`
	TTLSeconds      int    `json:"ttl_seconds,omitempty"`
}

// MintTokenResult mirrors achandlers.internalTokenResponse.
type MintTokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"-"`
}

// MintMeetingToken calls POST /api/v1/auth/internal/meeting-token.
func (c *Client) MintMeetingToken(ctx context.Context, req MintTokenRequest) (MintTokenResult, error) {
	return c.mint(ctx, "/api/v1/auth/internal/meeting-token", req)
}

// MintGuestToken calls POST /api/v1/auth/internal/guest-token.
func (c *Client) MintGuestToken(ctx context.Context, req MintTokenRequest) (MintTokenResult, error) {
	return c.mint(ctx, "/api/v1/auth/internal/guest-token", req)
}

func (c *Client) mint(ctx context.Context, path string, req MintTokenRequest) (MintTokenResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return MintTokenResult{}, fmt.Errorf("encoding mint request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return MintTokenResult{}, fmt.Errorf("building mint request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.tokens.Token())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return MintTokenResult{}, apierr.New(apierr.ServiceUnavailable, err, "calling ac %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return MintTokenResult{}, apierr.New(apierr.ServiceUnavailable, nil, "ac %s returned status %d", path, resp.StatusCode)
	}

	var out struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return MintTokenResult{}, fmt.Errorf("decoding mint response: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339, out.ExpiresAt)
	if err != nil {
		return MintTokenResult{}, fmt.Errorf("parsing expires_at: %w", err)
	}
	return MintTokenResult{Token: out.Token, ExpiresAt: expiresAt}, nil
}

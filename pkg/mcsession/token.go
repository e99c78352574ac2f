// Package mcsession implements MC session binding (C10): opaque,
// HMAC-SHA256 session tokens minted on first join and presented again on
// reconnect, with nonce-replay protection and fencing-generation checks
// against the shared fenced KV store (C2).
package mcsession

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
	"github.com/nbuckles13/dark-tower-sub010/pkg/fencedkv"
)

// DefaultTokenTTL is the binding token's default lifetime.
const DefaultTokenTTL = 5 * time.Minute

// payload is the struct HMAC-covered by a binding token. Clients treat the
// whole token as opaque bytes; only the MC ever parses it.
type payload struct {
	ParticipantID string `json:"participant_id"`
	MeetingID     string `json:"meeting_id"`
	IssuedAt      int64  `json:"issued_at"`
	Nonce         string `json:"nonce"`
}

// Outcome is the enumerated result of a session-binding operation, used
// as the MCSessionTokenTotal metric label.
type Outcome string

const (
	OutcomeIssued     Outcome = "issued"
	OutcomeResumed    Outcome = "resumed"
	OutcomeReplayed   Outcome = "replayed"
	OutcomeExpired    Outcome = "expired"
	OutcomeRedirected Outcome = "redirected"
)

// Binder mints and validates session binding tokens for one MC process.
type Binder struct {
	secret         []byte
	ttl            time.Duration
	recoveryBuffer int64
	fenced         fencedkv.Client
}

// NewBinder builds a Binder. secret must be >= 32 raw bytes (base64-decoded
// from MC_BINDING_TOKEN_SECRET at process start). ttl defaults to
// DefaultTokenTTL if zero.
func NewBinder(secret []byte, ttl time.Duration, recoveryBuffer int64, fenced fencedkv.Client) (*Binder, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("mcsession: binding secret must be >= 32 bytes, got %d", len(secret))
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Binder{secret: secret, ttl: ttl, recoveryBuffer: recoveryBuffer, fenced: fenced}, nil
}

func (b *Binder) sign(p payload) ([]byte, []byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, nil, fmt.Errorf("mcsession: encoding payload: %w", err)
	}
	mac := hmac.New(sha256.New, b.secret)
	mac.Write(body)
	return body, mac.Sum(nil), nil
}

// Mint issues a new opaque binding token for participantID joining
// meetingID, bound to the fencing generation the meeting currently holds.
func (b *Binder) Mint(participantID, meetingID string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("mcsession: generating nonce: %w", err)
	}

	p := payload{
		ParticipantID: participantID,
		MeetingID:     meetingID,
		IssuedAt:      time.Now().UTC().UnixMilli(),
		Nonce:         base64.RawURLEncoding.EncodeToString(nonce),
	}
	body, mac, err := b.sign(p)
	if err != nil {
		return "", err
	}

	token := base64.RawURLEncoding.EncodeToString(body) + "." + base64.RawURLEncoding.EncodeToString(mac)
	telemetry.MCSessionTokenTotal.WithLabelValues(string(OutcomeIssued)).Inc()
	return token, nil
}

// decode parses and HMAC-verifies raw without touching the nonce store or
// fencing generation; the nonce and generation checks are the caller's
// (Reconnect's) concern since they require I/O.
func (b *Binder) decode(raw string) (payload, error) {
	parts := splitToken(raw)
	if len(parts) != 2 {
		return payload{}, ErrMalformed
	}
	body, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return payload{}, ErrMalformed
	}
	gotMAC, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return payload{}, ErrMalformed
	}

	mac := hmac.New(sha256.New, b.secret)
	mac.Write(body)
	wantMAC := mac.Sum(nil)
	if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
		return payload{}, ErrBadSignature
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return payload{}, ErrMalformed
	}
	return p, nil
}

func splitToken(raw string) []string {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '.' {
			return []string{raw[:i], raw[i+1:]}
		}
	}
	return []string{raw}
}

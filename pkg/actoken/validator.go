package actoken

import (
	"context"
	"crypto/ed25519"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
)

// MaxTokenBytes bounds token size before any parsing attempt (C14).
const MaxTokenBytes = 8 * 1024

// JWKSSource fetches the current validator key set. AC serves this
// locally from ackeys.Store; GC and MC fetch it over HTTP from AC's
// /.well-known/jwks.json and cache it.
type JWKSSource func(ctx context.Context) (jose.JSONWebKeySet, error)

// Validator validates bearer tokens minted by Signer.
type Validator struct {
	jwks      JWKSSource
	issuer    string
	clockSkew time.Duration
}

// NewValidator builds a Validator. clockSkew defaults to 5 minutes if zero.
func NewValidator(jwks JWKSSource, issuer string, clockSkew time.Duration) *Validator {
	if clockSkew <= 0 {
		clockSkew = 5 * time.Minute
	}
	return &Validator{jwks: jwks, issuer: issuer, clockSkew: clockSkew}
}

// Validate parses and verifies raw, returning the subject and custom
// claims on success. Only jose.EdDSA is an accepted algorithm — tampering
// the header to claim a different algorithm, embed a jwk, or point at an
// external jku is structurally rejected because the signature no longer
// verifies (the signature covers the header).
func (v *Validator) Validate(ctx context.Context, raw string) (subject string, claims Claims, err error) {
	if len(raw) > MaxTokenBytes {
		return "", Claims{}, apierr.New(apierr.InvalidToken, nil, "token exceeds max size %d", MaxTokenBytes)
	}

	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return "", Claims{}, apierr.New(apierr.InvalidToken, err, "parsing token")
	}

	if len(tok.Headers) != 1 {
		return "", Claims{}, apierr.New(apierr.InvalidToken, nil, "unexpected header count %d", len(tok.Headers))
	}
	kid := tok.Headers[0].KeyID
	if kid == "" {
		return "", Claims{}, apierr.New(apierr.InvalidToken, nil, "missing kid header")
	}

	set, err := v.jwks(ctx)
	if err != nil {
		return "", Claims{}, apierr.New(apierr.ServiceUnavailable, err, "fetching jwks")
	}
	matches := set.Key(kid)
	if len(matches) == 0 {
		return "", Claims{}, apierr.New(apierr.InvalidToken, nil, "unknown kid %q", kid)
	}

	var pub ed25519.PublicKey
	var found bool
	for _, m := range matches {
		if p, ok := m.Key.(ed25519.PublicKey); ok && m.Algorithm == string(jose.EdDSA) {
			pub = p
			found = true
			break
		}
	}
	if !found {
		return "", Claims{}, apierr.New(apierr.InvalidToken, nil, "kid %q has no eddsa public key", kid)
	}

	var registered jwt.Claims
	var custom Claims
	if err := tok.Claims(pub, &registered, &custom); err != nil {
		return "", Claims{}, apierr.New(apierr.InvalidToken, err, "verifying signature")
	}

	if err := registered.ValidateWithLeeway(jwt.Expected{Issuer: v.issuer, Time: time.Now()}, v.clockSkew); err != nil {
		return "", Claims{}, apierr.New(apierr.InvalidToken, err, "validating registered claims")
	}

	return registered.Subject, custom, nil
}

package actoken

import (
	"context"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/nbuckles13/dark-tower-sub010/pkg/ackeys"
)

// Signer mints JWTs with the AC's current active signing key.
type Signer struct {
	keyStore *ackeys.Store
	master   ackeys.MasterKey
	issuer   string
}

// NewSigner builds a Signer over keyStore, decrypting private material
// under master.
func NewSigner(keyStore *ackeys.Store, master ackeys.MasterKey, issuer string) *Signer {
	return &Signer{keyStore: keyStore, master: master, issuer: issuer}
}

// Mint signs a new token of the given type and custom claims, capping its
// lifetime at the lesser of requestedTTL and the type's documented cap.
func (s *Signer) Mint(ctx context.Context, subject string, claims Claims, requestedTTL time.Duration) (token string, expiresAt time.Time, err error) {
	active, err := s.keyStore.ActiveKey(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("loading active signing key: %w", err)
	}
	priv, err := ackeys.DecryptPrivateKey(s.master, active.PrivateEnc)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("decrypting signing key: %w", err)
	}

	ttlCap := claims.TokenType.TTLCap()
	ttl := requestedTTL
	if ttl <= 0 || ttl > ttlCap {
		ttl = ttlCap
	}

	now := time.Now().UTC()
	expiresAt = now.Add(ttl)

	signerOpts := (&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", active.KeyID)
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: priv}, signerOpts)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("building signer: %w", err)
	}

	registered := jwt.Claims{
		Issuer:   s.issuer,
		Subject:  subject,
		ID:       uuid.New().String(),
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(expiresAt),
	}

	token, err = jwt.Signed(signer).Claims(registered).Claims(claims).Serialize()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("serializing token: %w", err)
	}
	return token, expiresAt, nil
}

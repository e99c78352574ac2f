// Package ackeys manages the AC signing-key lifecycle: generation,
// encrypted-at-rest storage, advisory-locked rotation, and JWKS
// publication (C3).
package ackeys

import "time"

// Algorithm is pinned to EdDSA (Ed25519); validators reject any other
// combination, so this is the only value the table ever stores.
const Algorithm = "EdDSA"

// SigningKey is one row of the signing-key table.
type SigningKey struct {
	KeyID        string
	Algorithm    string
	PublicKey    []byte // raw ed25519 public key bytes
	PrivateEnc   []byte // AES-256-GCM ciphertext of the raw private key
	CreatedAt    time.Time
	RotatedOutAt *time.Time
	ExpiresAt    time.Time
}

// IsActive reports whether k is the current signer (never rotated out).
func (k SigningKey) IsActive() bool { return k.RotatedOutAt == nil }

// ValidAt reports whether k should still be accepted by validators at t:
// the active key always is; a rotated-out key is valid until ExpiresAt.
func (k SigningKey) ValidAt(t time.Time) bool {
	return k.IsActive() || t.Before(k.ExpiresAt)
}

package ackeys

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// BuildJWKS builds the public JWKS document for keys. Because each
// jose.JSONWebKey wraps an ed25519.PublicKey (not the private key), its
// JSON encoding structurally cannot contain the private parameters
// (d, p, q, dp, dq, qi) spec §4.3 requires stripped — there is no private
// half for the serializer to see in the first place.
func BuildJWKS(keys []SigningKey) (jose.JSONWebKeySet, error) {
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(keys))}
	for _, k := range keys {
		if len(k.PublicKey) != ed25519.PublicKeySize {
			return jose.JSONWebKeySet{}, fmt.Errorf("key %s has invalid public key length %d", k.KeyID, len(k.PublicKey))
		}
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       ed25519.PublicKey(k.PublicKey),
			KeyID:     k.KeyID,
			Algorithm: k.Algorithm,
			Use:       "sig",
		})
	}
	return set, nil
}

// MarshalJWKS is a convenience wrapper for HTTP handlers.
func MarshalJWKS(keys []SigningKey) ([]byte, error) {
	set, err := BuildJWKS(keys)
	if err != nil {
		return nil, err
	}
	return json.Marshal(set)
}

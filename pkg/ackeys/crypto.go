package ackeys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// MasterKey is the decoded AC_MASTER_KEY: exactly 32 raw bytes, used
// directly as an AES-256-GCM key to encrypt signing-key private material
// at rest.
type MasterKey struct {
	key [32]byte
}

// DecodeMasterKey decodes base64Key (standard encoding) and requires
// exactly 32 raw bytes, matching the format documented for
// MC_BINDING_TOKEN_SECRET in SPEC_FULL.md's open-question decision.
func DecodeMasterKey(base64Key string) (MasterKey, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return MasterKey{}, fmt.Errorf("decoding master key: %w", err)
	}
	if len(raw) != 32 {
		return MasterKey{}, fmt.Errorf("master key must decode to 32 bytes, got %d", len(raw))
	}
	var mk MasterKey
	copy(mk.key[:], raw)
	return mk, nil
}

func (mk MasterKey) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(mk.key[:])
	if err != nil {
		return nil, fmt.Errorf("building aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (mk MasterKey) decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(mk.key[:])
	if err != nil {
		return nil, fmt.Errorf("building aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building gcm: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, ct := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return plaintext, nil
}

// generateKeypair creates a fresh Ed25519 keypair from a cryptographic
// source and encrypts the private half under mk.
func generateKeypair(mk MasterKey) (pub ed25519.PublicKey, privEnc []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating ed25519 keypair: %w", err)
	}
	privEnc, err = mk.encrypt(priv)
	if err != nil {
		return nil, nil, err
	}
	return pub, privEnc, nil
}

// DecryptPrivateKey recovers the raw ed25519 private key for signing.
func DecryptPrivateKey(mk MasterKey, privEnc []byte) (ed25519.PrivateKey, error) {
	raw, err := mk.decrypt(privEnc)
	if err != nil {
		return nil, err
	}
	return ed25519.PrivateKey(raw), nil
}

package actoken

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
	"github.com/nbuckles13/dark-tower-sub010/internal/secret"
)

type fakeClientStore struct {
	clients map[string]OAuthClient
}

func (f *fakeClientStore) GetByID(_ context.Context, id string) (OAuthClient, error) {
	c, ok := f.clients[id]
	if !ok {
		return OAuthClient{}, ErrClientNotFound
	}
	return c, nil
}
func (f *fakeClientStore) Create(context.Context, string, string, []string) error { return nil }
func (f *fakeClientStore) UpdateSecretHash(context.Context, string, string) error  { return nil }

func newTestService(t *testing.T, store *fakeClientStore) *Service {
	t.Helper()
	// Signer is not exercised by the failure-path tests below, so a nil
	// *Signer is fine — those paths return before Mint is called.
	svc, err := NewService(store, nil, BcryptCostMin, secret.New("test-hash-secret-at-least-this-long"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestIssueServiceToken_UnknownClient(t *testing.T) {
	store := &fakeClientStore{clients: map[string]OAuthClient{}}
	svc := newTestService(t, store)

	_, _, err := svc.IssueServiceToken(context.Background(), "does-not-exist", "whatever", nil)
	if apierr.KindOf(err) != apierr.InvalidClient {
		t.Fatalf("expected InvalidClient, got %v", err)
	}
}

func TestIssueServiceToken_BadSecret(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-secret"), BcryptCostMin)
	store := &fakeClientStore{clients: map[string]OAuthClient{
		"client-a": {ClientID: "client-a", SecretHash: string(hash), AllowedScopes: []string{"a"}},
	}}
	svc := newTestService(t, store)

	_, _, err := svc.IssueServiceToken(context.Background(), "client-a", "wrong-secret", nil)
	if apierr.KindOf(err) != apierr.InvalidClient {
		t.Fatalf("expected InvalidClient, got %v", err)
	}
}

func TestIssueServiceToken_Disabled(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-secret"), BcryptCostMin)
	store := &fakeClientStore{clients: map[string]OAuthClient{
		"client-a": {ClientID: "client-a", SecretHash: string(hash), AllowedScopes: []string{"a"}, Disabled: true},
	}}
	svc := newTestService(t, store)

	_, _, err := svc.IssueServiceToken(context.Background(), "client-a", "correct-secret", nil)
	if apierr.KindOf(err) != apierr.InvalidClient {
		t.Fatalf("expected InvalidClient, got %v", err)
	}
}

func TestIssueServiceToken_InsufficientScope(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-secret"), BcryptCostMin)
	store := &fakeClientStore{clients: map[string]OAuthClient{
		"client-a": {ClientID: "client-a", SecretHash: string(hash), AllowedScopes: []string{"a"}},
	}}
	svc := newTestService(t, store)

	_, _, err := svc.IssueServiceToken(context.Background(), "client-a", "correct-secret", []string{"b"})
	if apierr.KindOf(err) != apierr.InvalidClient {
		t.Fatalf("expected InvalidClient, got %v", err)
	}
}

func TestClaims_ScopeSplit_EmptyStringYieldsEmptySet(t *testing.T) {
	c := Claims{Scopes: ""}
	if len(c.ScopeList()) != 0 {
		t.Fatalf("expected empty scope set, got %v", c.ScopeList())
	}
}

func TestClaims_HasScope_ExactMatchOnly(t *testing.T) {
	c := Claims{Scopes: "internal:meeting-token"}
	if !c.HasScope("internal:meeting-token") {
		t.Fatalf("expected exact match to succeed")
	}
	if c.HasScope("internal:meeting") {
		t.Fatalf("prefix match must be rejected")
	}
	if c.HasScope("Internal:Meeting-Token") {
		t.Fatalf("case-insensitive match must be rejected")
	}
}

func TestGenerateClientSecret_Length(t *testing.T) {
	s, err := GenerateClientSecret(32)
	if err != nil {
		t.Fatalf("GenerateClientSecret: %v", err)
	}
	if len(s) != 32 {
		t.Fatalf("expected length 32, got %d", len(s))
	}
}

package actoken

import "time"

// OAuthClient is the registered service identity table (spec §3).
type OAuthClient struct {
	ClientID      string
	SecretHash    string
	AllowedScopes []string
	CreatedAt     time.Time
	Disabled      bool
}

// ScopesSubset reports whether requested is a subset of the client's
// allowed scopes (exact string match per scope, per C5's exact-match
// rule).
func (c OAuthClient) ScopesSubset(requested []string) bool {
	allowed := make(map[string]struct{}, len(c.AllowedScopes))
	for _, s := range c.AllowedScopes {
		allowed[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := allowed[s]; !ok {
			return false
		}
	}
	return true
}

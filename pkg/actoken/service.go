package actoken

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nbuckles13/dark-tower-sub010/internal/apierr"
	"github.com/nbuckles13/dark-tower-sub010/internal/secret"
	"github.com/nbuckles13/dark-tower-sub010/internal/telemetry"
)

// BcryptCostMin is the floor re-validated at hash time, defense-in-depth
// against a misconfigured cost being persisted.
const BcryptCostMin = 10
const BcryptCostMax = 14

const registeredSecretCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Service implements AC Token Service (C4): client verification with
// dummy-hash timing defense, and service-token issuance.
type Service struct {
	clients   ClientStore
	signer    *Signer
	bcryptCost int
	dummyHash string
}

// NewService builds a Service. hashSecret seeds a fixed dummy bcrypt hash
// computed once at construction, so every "unknown client" lookup runs an
// identically-costed verification as a real one (spec §4.4 step 2).
func NewService(clients ClientStore, signer *Signer, bcryptCost int, hashSecret secret.String) (*Service, error) {
	if bcryptCost < BcryptCostMin || bcryptCost > BcryptCostMax {
		return nil, fmt.Errorf("bcrypt cost %d outside allowed range [%d,%d]", bcryptCost, BcryptCostMin, BcryptCostMax)
	}
	dummyHash, err := bcrypt.GenerateFromPassword([]byte(hashSecret.Expose()), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("computing dummy hash: %w", err)
	}
	return &Service{clients: clients, signer: signer, bcryptCost: bcryptCost, dummyHash: string(dummyHash)}, nil
}

// IssueServiceTokenResult carries the outcome used only for metrics and
// logs; it never reaches the client (see ClientMessage(InvalidClient)).
type issueOutcome string

const (
	outcomeSuccess           issueOutcome = "success"
	outcomeUnknown           issueOutcome = "unknown"
	outcomeBadSecret         issueOutcome = "bad_secret"
	outcomeDisabled          issueOutcome = "disabled"
	outcomeInsufficientScope issueOutcome = "insufficient_scope"
)

// IssueServiceToken runs the full service-token issuance flow (spec
// §4.4). All failure paths return an *apierr.Error of kind InvalidClient;
// the distinguishing reason is recorded only in the outcome metric.
func (s *Service) IssueServiceToken(ctx context.Context, clientID, providedSecret string, requestedScopes []string) (token string, expiresAt time.Time, err error) {
	client, lookupErr := s.clients.GetByID(ctx, clientID)
	unknown := errors.Is(lookupErr, ErrClientNotFound)
	if lookupErr != nil && !unknown {
		return "", time.Time{}, apierr.New(apierr.InternalError, lookupErr, "looking up oauth client")
	}

	if unknown {
		// Dummy verification keeps the timing profile identical to a real
		// wrong-secret check.
		_ = bcrypt.CompareHashAndPassword([]byte(s.dummyHash), []byte(providedSecret))
		s.recordOutcome(outcomeUnknown)
		return "", time.Time{}, apierr.New(apierr.InvalidClient, ErrClientNotFound, "unknown client %q", clientID)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(providedSecret)); err != nil {
		s.recordOutcome(outcomeBadSecret)
		return "", time.Time{}, apierr.New(apierr.InvalidClient, err, "bad secret for client %q", clientID)
	}

	if cost, err := bcrypt.Cost([]byte(client.SecretHash)); err != nil || cost < BcryptCostMin {
		s.recordOutcome(outcomeBadSecret)
		return "", time.Time{}, apierr.New(apierr.InvalidClient, fmt.Errorf("stored hash cost below minimum"), "client %q hash cost below minimum", clientID)
	}

	if client.Disabled {
		s.recordOutcome(outcomeDisabled)
		return "", time.Time{}, apierr.New(apierr.InvalidClient, nil, "client %q disabled", clientID)
	}

	if !client.ScopesSubset(requestedScopes) {
		s.recordOutcome(outcomeInsufficientScope)
		return "", time.Time{}, apierr.New(apierr.InvalidClient, nil, "client %q requested scopes exceed allowed", clientID)
	}

	claims := Claims{TokenType: TokenService, Scopes: joinScopes(requestedScopes)}
	token, expiresAt, err = s.signer.Mint(ctx, clientID, claims, TokenService.TTLCap())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("minting service token: %w", err)
	}
	s.recordOutcome(outcomeSuccess)
	return token, expiresAt, nil
}

func (s *Service) recordOutcome(o issueOutcome) {
	telemetry.ACTokenIssuanceTotal.WithLabelValues(string(o)).Inc()
}

func joinScopes(scopes []string) string {
	out := ""
	for i, s := range scopes {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}

// GenerateClientSecret produces a high-entropy secret for client
// registration/rotation, modeled on the teacher's generateRandomPassword:
// a crypto/rand-sourced string over an alphanumeric charset, returned
// exactly once to the caller.
func GenerateClientSecret(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(registeredSecretCharset))))
		if err != nil {
			return "", fmt.Errorf("generating random secret: %w", err)
		}
		b[i] = registeredSecretCharset[n.Int64()]
	}
	return string(b), nil
}

// HashClientSecret hashes a raw client secret for storage.
func HashClientSecret(raw string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", fmt.Errorf("hashing client secret: %w", err)
	}
	return string(hash), nil
}

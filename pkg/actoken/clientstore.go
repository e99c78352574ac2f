package actoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrClientNotFound is returned by ClientStore.GetByID for an unknown
// client_id.
var ErrClientNotFound = errors.New("actoken: client not found")

// ClientStore abstracts OAuth client persistence.
type ClientStore interface {
	GetByID(ctx context.Context, clientID string) (OAuthClient, error)
	Create(ctx context.Context, clientID, secretHash string, scopes []string) error
	UpdateSecretHash(ctx context.Context, clientID, secretHash string) error
}

// PGClientStore implements ClientStore over Postgres with direct queries.
type PGClientStore struct {
	pool *pgxpool.Pool
}

// NewPGClientStore builds a PGClientStore backed by pool.
func NewPGClientStore(pool *pgxpool.Pool) *PGClientStore {
	return &PGClientStore{pool: pool}
}

const clientColumns = `client_id, secret_hash, allowed_scopes, created_at, disabled`

func scanClient(row pgx.Row) (OAuthClient, error) {
	var c OAuthClient
	var scopes string
	err := row.Scan(&c.ClientID, &c.SecretHash, &scopes, &c.CreatedAt, &c.Disabled)
	if err != nil {
		return OAuthClient{}, err
	}
	if scopes != "" {
		c.AllowedScopes = strings.Fields(scopes)
	}
	return c, nil
}

func (s *PGClientStore) GetByID(ctx context.Context, clientID string) (OAuthClient, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM oauth_clients WHERE client_id = $1`, clientID)
	c, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return OAuthClient{}, ErrClientNotFound
	}
	if err != nil {
		return OAuthClient{}, fmt.Errorf("querying oauth client: %w", err)
	}
	return c, nil
}

func (s *PGClientStore) Create(ctx context.Context, clientID, secretHash string, scopes []string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO oauth_clients (client_id, secret_hash, allowed_scopes, created_at, disabled) VALUES ($1,$2,$3,$4,false)`,
		clientID, secretHash, strings.Join(scopes, " "), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting oauth client: %w", err)
	}
	return nil
}

func (s *PGClientStore) UpdateSecretHash(ctx context.Context, clientID, secretHash string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE oauth_clients SET secret_hash = $1 WHERE client_id = $2`, secretHash, clientID)
	if err != nil {
		return fmt.Errorf("updating oauth client secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

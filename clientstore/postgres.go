package clientstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/dashdevs/sme-finance-core/security"
	"github.com/dashdevs/sme-finance-core/tokenrelay"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const scopeDelimiter = ","

const (
	loadClientSQL = `
SELECT client_registration_id, principal_name,
       access_token_type, access_token_value, access_token_issued_at, access_token_expires_at, access_token_scopes,
       refresh_token_value
  FROM oauth2_authorized_client
 WHERE client_registration_id = $1 AND principal_name = $2`

	saveClientSQL = `
INSERT INTO oauth2_authorized_client (
       client_registration_id, principal_name,
       access_token_type, access_token_value, access_token_issued_at, access_token_expires_at, access_token_scopes,
       refresh_token_value, refresh_token_issued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (client_registration_id, principal_name) DO UPDATE SET
       access_token_type       = EXCLUDED.access_token_type,
       access_token_value      = EXCLUDED.access_token_value,
       access_token_issued_at  = EXCLUDED.access_token_issued_at,
       access_token_expires_at = EXCLUDED.access_token_expires_at,
       access_token_scopes     = EXCLUDED.access_token_scopes,
       refresh_token_value     = EXCLUDED.refresh_token_value,
       refresh_token_issued_at = EXCLUDED.refresh_token_issued_at,
       updated_at              = CURRENT_TIMESTAMP`

	removeClientSQL = `
DELETE FROM oauth2_authorized_client
 WHERE client_registration_id = $1 AND principal_name = $2`
)

// Postgres stores authorized clients in the oauth2_authorized_client table.
// Run Migrate once before use.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgres creates a store on top of pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, now: time.Now}
}

// Connect opens a pool for dsn and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("clientstore: failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("clientstore: failed to connect to postgres: %w", err)
	}
	return pool, nil
}

// Migrate applies all pending schema migrations using goose.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	// The embedded filesystem has files under "migrations/", so we need
	// to strip that prefix to get a flat filesystem of .sql files.
	migrationFS, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("clientstore: failed to create sub filesystem: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(database.DialectPostgres, db, migrationFS)
	if err != nil {
		return fmt.Errorf("clientstore: failed to create goose provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("clientstore: failed to apply migrations: %w", err)
	}

	return nil
}

// Load returns the record for the key, or (nil, nil) when none is stored.
func (p *Postgres) Load(ctx context.Context, registrationID, principalName string) (*tokenrelay.AuthorizedClient, error) {
	var (
		client       tokenrelay.AuthorizedClient
		issuedAt     pgtype.Timestamptz
		expiresAt    pgtype.Timestamptz
		scopes       pgtype.Text
		refreshToken pgtype.Text
	)

	err := p.pool.QueryRow(ctx, loadClientSQL, registrationID, principalName).Scan(
		&client.RegistrationID,
		&client.PrincipalName,
		&client.AccessToken.Type,
		&client.AccessToken.Value,
		&issuedAt,
		&expiresAt,
		&scopes,
		&refreshToken,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("clientstore: failed to load authorized client: %w", err)
	}

	if issuedAt.Valid {
		client.AccessToken.IssuedAt = issuedAt.Time
	}
	if expiresAt.Valid {
		client.AccessToken.ExpiresAt = expiresAt.Time
	}
	if scopes.Valid && scopes.String != "" {
		client.AccessToken.Scopes = strings.Split(scopes.String, scopeDelimiter)
	}
	if refreshToken.Valid {
		client.RefreshToken.Value = refreshToken.String
	}

	return &client, nil
}

// Save upserts the record for client's key.
func (p *Postgres) Save(ctx context.Context, client *tokenrelay.AuthorizedClient, _ security.Principal) error {
	if client == nil {
		return errors.New("clientstore: client is nil")
	}
	if err := validateKey(client.RegistrationID, client.PrincipalName); err != nil {
		return err
	}

	tokenType := client.AccessToken.Type
	if tokenType == "" {
		tokenType = tokenrelay.DefaultTokenType
	}

	var refreshToken, refreshIssuedAt any
	if client.RefreshToken.Value != "" {
		refreshToken = client.RefreshToken.Value
		refreshIssuedAt = p.now()
	}

	_, err := p.pool.Exec(ctx, saveClientSQL,
		client.RegistrationID,
		client.PrincipalName,
		tokenType,
		client.AccessToken.Value,
		nullableTime(client.AccessToken.IssuedAt),
		nullableTime(client.AccessToken.ExpiresAt),
		nullableString(strings.Join(client.AccessToken.Scopes, scopeDelimiter)),
		refreshToken,
		refreshIssuedAt,
	)
	if err != nil {
		return fmt.Errorf("clientstore: failed to save authorized client: %w", err)
	}

	return nil
}

// Remove deletes the record for the key. Removing a missing record is not an error.
func (p *Postgres) Remove(ctx context.Context, registrationID, principalName string) error {
	if _, err := p.pool.Exec(ctx, removeClientSQL, registrationID, principalName); err != nil {
		return fmt.Errorf("clientstore: failed to remove authorized client: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

func nullableString(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

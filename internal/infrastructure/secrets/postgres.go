package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =====================================================
// POSTGRES BACKEND
// =====================================================

// PostgresBackend persists sealed envelopes in the gateway_secrets
// table. Every Save bumps the row version so credential caches see
// rotations.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{
		pool: pool,
	}
}

func (b *PostgresBackend) Load(ctx context.Context, name string) (string, int64, error) {
	query := `
		SELECT envelope, version
		FROM gateway_secrets
		WHERE name = $1
	`

	var envelope string
	var version int64
	err := b.pool.QueryRow(ctx, query, name).Scan(&envelope, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return "", 0, fmt.Errorf("failed to load secret: %w", err)
	}

	return envelope, version, nil
}

func (b *PostgresBackend) Save(ctx context.Context, name, envelope string) (int64, error) {
	query := `
		INSERT INTO gateway_secrets (name, envelope, version, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (name) DO UPDATE
		SET envelope = EXCLUDED.envelope,
		    version = gateway_secrets.version + 1,
		    updated_at = NOW()
		RETURNING version
	`

	var version int64
	if err := b.pool.QueryRow(ctx, query, name, envelope).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to save secret: %w", err)
	}

	return version, nil
}

func (b *PostgresBackend) Version(ctx context.Context, name string) (int64, error) {
	query := `
		SELECT version
		FROM gateway_secrets
		WHERE name = $1
	`

	var version int64
	err := b.pool.QueryRow(ctx, query, name).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
		}
		return 0, fmt.Errorf("failed to read secret version: %w", err)
	}

	return version, nil
}

// Package postgres implements the storage interfaces on PostgreSQL using a
// pgx connection pool.
//
// Sensitive columns (refresh_token, token_sonax) are encrypted at rest when
// the store is constructed with an enabled security.Encryptor.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sonax/hubspot-connector/security"
	"github.com/sonax/hubspot-connector/storage"
)

// Store implements storage.Store backed by a PostgreSQL pool.
type Store struct {
	db        *pgxpool.Pool
	encryptor *security.Encryptor
}

// New connects to PostgreSQL and verifies the connection.
// A nil encryptor disables encryption at rest.
func New(ctx context.Context, dbURL string, encryptor *security.Encryptor) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if encryptor == nil {
		encryptor, _ = security.NewEncryptor(nil)
	}

	return &Store{db: db, encryptor: encryptor}, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.db.Close()
}

// Interface guard.
var _ storage.Store = (*Store)(nil)

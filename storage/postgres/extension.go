package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sonax/hubspot-connector/storage"
)

// ReplaceExtensions replaces the full extension mapping for a hub inside a
// single transaction: a failure at any point leaves the previous set intact.
func (s *Store) ReplaceExtensions(ctx context.Context, hubID string, extensions map[string]string) error {
	if hubID == "" {
		return fmt.Errorf("hub id is required")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM hubspot_usuarios_ramais WHERE hub_id = $1`, hubID,
	); err != nil {
		return fmt.Errorf("failed to clear extensions for hub %s: %w", hubID, err)
	}

	now := time.Now()
	for userEmail, extension := range extensions {
		_, err := tx.Exec(ctx,
			`INSERT INTO hubspot_usuarios_ramais (hub_id, user_email, ramal, created_at) VALUES ($1, $2, $3, $4)`,
			hubID, userEmail, extension, now,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return fmt.Errorf("hub %s: %w", hubID, storage.ErrNotFound)
			}
			return fmt.Errorf("failed to insert extension for %s: %w", userEmail, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit extension replace: %w", err)
	}

	return nil
}

// ExtensionsByHubID returns the current mapping for a hub, empty when none.
func (s *Store) ExtensionsByHubID(ctx context.Context, hubID string) (map[string]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT user_email, ramal FROM hubspot_usuarios_ramais WHERE hub_id = $1`, hubID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load extensions for hub %s: %w", hubID, err)
	}
	defer rows.Close()

	extensions := make(map[string]string)
	for rows.Next() {
		var userEmail, extension string
		if err := rows.Scan(&userEmail, &extension); err != nil {
			return nil, fmt.Errorf("failed to scan extension row: %w", err)
		}
		extensions[userEmail] = extension
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read extension rows: %w", err)
	}

	return extensions, nil
}

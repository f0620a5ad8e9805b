package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sonax/hubspot-connector/storage"
)

// SaveToken upserts the token fields of a record keyed on hub_id.
// The PABX credential columns and created_at are preserved on conflict.
func (s *Store) SaveToken(ctx context.Context, record *storage.TokenRecord) error {
	if record == nil || record.HubID == "" || record.AccessToken == "" {
		return fmt.Errorf("hub id and access token are required")
	}

	refreshToken, err := s.encryptNullable(record.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	createdAt, updatedAt := timestamps(record)

	query := `
        INSERT INTO conector_hubspot (hub_id, access_token, refresh_token, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (hub_id)
        DO UPDATE SET
            access_token = EXCLUDED.access_token,
            refresh_token = EXCLUDED.refresh_token,
            expires_at = EXCLUDED.expires_at,
            updated_at = EXCLUDED.updated_at
    `

	_, err = s.db.Exec(ctx, query,
		record.HubID,
		record.AccessToken,
		refreshToken,
		record.ExpiresAt,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save token for hub %s: %w", record.HubID, err)
	}

	return nil
}

// SaveCredentials upserts a record including the PABX credential pair.
func (s *Store) SaveCredentials(ctx context.Context, record *storage.TokenRecord) error {
	if record == nil || record.HubID == "" || record.AccessToken == "" {
		return fmt.Errorf("hub id and access token are required")
	}

	refreshToken, err := s.encryptNullable(record.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}
	sonaxToken, err := s.encryptNullable(record.SonaxToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt sonax token: %w", err)
	}

	createdAt, updatedAt := timestamps(record)

	query := `
        INSERT INTO conector_hubspot (hub_id, token_sonax, client_id_sonax, access_token, refresh_token, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (hub_id)
        DO UPDATE SET
            token_sonax = EXCLUDED.token_sonax,
            client_id_sonax = EXCLUDED.client_id_sonax,
            access_token = EXCLUDED.access_token,
            refresh_token = EXCLUDED.refresh_token,
            expires_at = EXCLUDED.expires_at,
            updated_at = EXCLUDED.updated_at
    `

	_, err = s.db.Exec(ctx, query,
		record.HubID,
		sonaxToken,
		nullable(record.SonaxClientID),
		record.AccessToken,
		refreshToken,
		record.ExpiresAt,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials for hub %s: %w", record.HubID, err)
	}

	return nil
}

// TokenByHubID returns the record for a hub id, or storage.ErrNotFound.
func (s *Store) TokenByHubID(ctx context.Context, hubID string) (*storage.TokenRecord, error) {
	query := `
        SELECT hub_id, access_token, refresh_token, token_sonax, client_id_sonax, expires_at, created_at, updated_at
        FROM conector_hubspot
        WHERE hub_id = $1
    `

	var (
		record        storage.TokenRecord
		refreshToken  *string
		sonaxToken    *string
		sonaxClientID *string
		createdAt     *time.Time
		updatedAt     *time.Time
	)

	err := s.db.QueryRow(ctx, query, hubID).Scan(
		&record.HubID,
		&record.AccessToken,
		&refreshToken,
		&sonaxToken,
		&sonaxClientID,
		&record.ExpiresAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load token for hub %s: %w", hubID, err)
	}

	record.RefreshToken, err = s.decryptNullable(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	record.SonaxToken, err = s.decryptNullable(sonaxToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt sonax token: %w", err)
	}
	if sonaxClientID != nil {
		record.SonaxClientID = *sonaxClientID
	}
	if createdAt != nil {
		record.CreatedAt = *createdAt
	}
	if updatedAt != nil {
		record.UpdatedAt = *updatedAt
	}

	return &record, nil
}

// HubExists reports whether a record exists for the hub id.
func (s *Store) HubExists(ctx context.Context, hubID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM conector_hubspot WHERE hub_id = $1)`, hubID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check hub %s: %w", hubID, err)
	}

	return exists, nil
}

// HubData returns the stored PABX credential pair, or storage.ErrNotFound.
func (s *Store) HubData(ctx context.Context, hubID string) (*storage.HubData, error) {
	query := `
        SELECT token_sonax, client_id_sonax
        FROM conector_hubspot
        WHERE hub_id = $1
    `

	var sonaxToken, sonaxClientID *string
	err := s.db.QueryRow(ctx, query, hubID).Scan(&sonaxToken, &sonaxClientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load hub data for %s: %w", hubID, err)
	}

	data := &storage.HubData{}
	data.SonaxToken, err = s.decryptNullable(sonaxToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt sonax token: %w", err)
	}
	if sonaxClientID != nil {
		data.SonaxClientID = *sonaxClientID
	}

	return data, nil
}

// encryptNullable encrypts a sensitive value, mapping "" to NULL so that
// absent credentials stay absent in the database.
func (s *Store) encryptNullable(value string) (*string, error) {
	if value == "" {
		return nil, nil
	}
	encrypted, err := s.encryptor.Encrypt(value)
	if err != nil {
		return nil, err
	}
	return &encrypted, nil
}

func (s *Store) decryptNullable(value *string) (string, error) {
	if value == nil || *value == "" {
		return "", nil
	}
	return s.encryptor.Decrypt(*value)
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// timestamps fills in created_at/updated_at when the caller left them zero.
func timestamps(record *storage.TokenRecord) (time.Time, time.Time) {
	now := time.Now()
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	return createdAt, updatedAt
}

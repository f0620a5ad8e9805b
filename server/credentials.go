package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sonax/hubspot-connector/storage"
)

// Credentials is a manual registration of a hub: HubSpot tokens obtained out
// of band plus the PABX pairing for that customer. The JSON field names are
// the wire format the PABX frontend already sends: "token" and "clientId"
// are the Sonax pair.
type Credentials struct {
	HubID         string `json:"hubId"`
	SonaxToken    string `json:"token"`
	SonaxClientID string `json:"clientId"`
	AccessToken   string `json:"accessToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     int    `json:"expiresIn"`
}

// SaveCredentials stores a manually registered hub. When no hub id is given a
// surrogate one is generated and returned.
func (s *Server) SaveCredentials(ctx context.Context, creds *Credentials) (string, error) {
	if creds == nil {
		return "", fmt.Errorf("%w: credentials are required", ErrInvalidInput)
	}
	if creds.SonaxToken == "" || creds.SonaxClientID == "" {
		return "", fmt.Errorf("%w: token_sonax and client_id_sonax are required", ErrInvalidInput)
	}
	if creds.AccessToken == "" || creds.RefreshToken == "" {
		return "", fmt.Errorf("%w: access_token and refresh_token are required", ErrInvalidInput)
	}
	if creds.ExpiresIn <= 0 {
		return "", fmt.Errorf("%w: expires_in must be positive", ErrInvalidInput)
	}

	hubID := creds.HubID
	if hubID == "" {
		hubID = "hub_" + uuid.NewString()
	}

	record := &storage.TokenRecord{
		HubID:         hubID,
		AccessToken:   creds.AccessToken,
		RefreshToken:  creds.RefreshToken,
		SonaxToken:    creds.SonaxToken,
		SonaxClientID: creds.SonaxClientID,
		ExpiresAt:     s.now().Add(time.Duration(creds.ExpiresIn) * time.Second),
	}
	if err := s.store.SaveCredentials(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save credentials for hub %s: %w", hubID, err)
	}

	s.logger.Info("credentials saved", "hub_id", hubID)
	return hubID, nil
}

// ValidateHub reports whether a token record exists for the hub.
func (s *Server) ValidateHub(ctx context.Context, hubID string) (bool, error) {
	if hubID == "" {
		return false, fmt.Errorf("%w: hub id is required", ErrInvalidInput)
	}

	exists, err := s.store.HubExists(ctx, hubID)
	if err != nil {
		return false, fmt.Errorf("failed to check hub %s: %w", hubID, err)
	}
	return exists, nil
}

// HubData returns the PABX pairing stored for the hub.
func (s *Server) HubData(ctx context.Context, hubID string) (*storage.HubData, error) {
	if hubID == "" {
		return nil, fmt.Errorf("%w: hub id is required", ErrInvalidInput)
	}

	data, err := s.store.HubData(ctx, hubID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrHubNotFound, hubID)
		}
		return nil, fmt.Errorf("failed to load hub data for %s: %w", hubID, err)
	}
	return data, nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sonax/hubspot-connector/storage"
)

// TokenStatus describes the stored token for a hub without exposing the
// token itself.
type TokenStatus struct {
	HubID     string     `json:"hubId"`
	HasToken  bool       `json:"hasToken"`
	Expired   bool       `json:"expired"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// AccessToken describes a usable access token handed to callers.
type AccessToken struct {
	HubID       string    `json:"hubId"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Renewed     bool      `json:"renewed"`
}

// IsExpired reports whether the hub's stored access token has expired.
// An unknown hub yields ErrHubNotFound, never a bare "true".
func (s *Server) IsExpired(ctx context.Context, hubID string) (bool, error) {
	if hubID == "" {
		return false, fmt.Errorf("%w: hub id is required", ErrInvalidInput)
	}

	record, err := s.store.TokenByHubID(ctx, hubID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("%w: %s", ErrHubNotFound, hubID)
		}
		return false, fmt.Errorf("failed to load token for hub %s: %w", hubID, err)
	}
	return record.Expired(s.now()), nil
}

// ValidAccessToken returns an access token for the hub, refreshing it first
// when the stored one has expired. Concurrent calls for the same hub share a
// single refresh.
func (s *Server) ValidAccessToken(ctx context.Context, hubID string) (*AccessToken, error) {
	if hubID == "" {
		return nil, fmt.Errorf("%w: hub id is required", ErrInvalidInput)
	}

	record, err := s.store.TokenByHubID(ctx, hubID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrHubNotFound, hubID)
		}
		return nil, fmt.Errorf("failed to load token for hub %s: %w", hubID, err)
	}

	if !record.Expired(s.now()) {
		return &AccessToken{
			HubID:       hubID,
			AccessToken: record.AccessToken,
			ExpiresAt:   record.ExpiresAt,
			Renewed:     false,
		}, nil
	}

	refreshed, err := s.refresh(ctx, hubID)
	if err != nil {
		return nil, err
	}

	return &AccessToken{
		HubID:       hubID,
		AccessToken: refreshed.AccessToken,
		ExpiresAt:   refreshed.ExpiresAt,
		Renewed:     true,
	}, nil
}

// refresh exchanges the stored refresh token for a new access token and
// persists the result. Collapsed per hub id: only one provider call runs at a
// time, late arrivals receive the same record.
func (s *Server) refresh(ctx context.Context, hubID string) (*storage.TokenRecord, error) {
	value, err, _ := s.refreshGroup.Do(hubID, func() (any, error) {
		// Another waiter may have refreshed while we queued; re-read before
		// hitting the provider.
		current, err := s.store.TokenByHubID(ctx, hubID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrHubNotFound, hubID)
			}
			return nil, fmt.Errorf("failed to load token for hub %s: %w", hubID, err)
		}
		if !current.Expired(s.now()) {
			return current, nil
		}

		if current.RefreshToken == "" {
			s.metrics().RecordTokenRefresh(ctx, "no_refresh_token")
			return nil, fmt.Errorf("%w: hub %s", ErrNoRefreshToken, hubID)
		}

		token, err := s.provider.RefreshToken(ctx, current.RefreshToken)
		if err != nil {
			s.logger.Error("token refresh failed", "hub_id", hubID, "error", err)
			s.metrics().RecordTokenRefresh(ctx, "error")
			return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		}

		expiresAt := token.Expiry.In(s.location)
		if token.Expiry.IsZero() {
			expiresAt = s.now().Add(s.defaultTokenTTL)
		}

		// HubSpot rotates refresh tokens only sometimes; keep the old one
		// when the response omits a replacement.
		refreshToken := token.RefreshToken
		if refreshToken == "" {
			refreshToken = current.RefreshToken
		}

		record := &storage.TokenRecord{
			HubID:        hubID,
			AccessToken:  token.AccessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    expiresAt,
		}
		if err := s.store.SaveToken(ctx, record); err != nil {
			s.metrics().RecordTokenRefresh(ctx, "save_error")
			return nil, fmt.Errorf("%w: failed to persist refreshed token: %v", ErrRefreshFailed, err)
		}

		s.logger.Info("access token refreshed", "hub_id", hubID, "expires_at", expiresAt)
		s.metrics().RecordTokenRefresh(ctx, "success")
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*storage.TokenRecord), nil
}

// Status reports whether a token exists for the hub and whether it is still
// valid. An unknown hub yields ErrHubNotFound rather than HasToken=false so
// callers can tell the two apart.
func (s *Server) Status(ctx context.Context, hubID string) (*TokenStatus, error) {
	if hubID == "" {
		return nil, fmt.Errorf("%w: hub id is required", ErrInvalidInput)
	}

	record, err := s.store.TokenByHubID(ctx, hubID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrHubNotFound, hubID)
		}
		return nil, fmt.Errorf("failed to load token for hub %s: %w", hubID, err)
	}

	expiresAt := record.ExpiresAt
	createdAt := record.CreatedAt
	updatedAt := record.UpdatedAt

	return &TokenStatus{
		HubID:     hubID,
		HasToken:  record.AccessToken != "",
		Expired:   record.Expired(s.now()),
		ExpiresAt: &expiresAt,
		CreatedAt: &createdAt,
		UpdatedAt: &updatedAt,
	}, nil
}

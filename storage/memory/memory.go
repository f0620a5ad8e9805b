// Package memory provides an in-memory implementation of the storage
// interfaces for development and testing. All data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/sonax/hubspot-connector/storage"
)

// Store is a thread-safe in-memory implementation of storage.Store.
type Store struct {
	mu         sync.RWMutex
	tokens     map[string]*storage.TokenRecord
	extensions map[string]map[string]string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		tokens:     make(map[string]*storage.TokenRecord),
		extensions: make(map[string]map[string]string),
	}
}

// SaveToken inserts or updates the token fields of a record.
func (s *Store) SaveToken(ctx context.Context, record *storage.TokenRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.tokens[record.HubID]; ok {
		updated := *existing
		updated.AccessToken = record.AccessToken
		updated.RefreshToken = record.RefreshToken
		updated.ExpiresAt = record.ExpiresAt
		updated.UpdatedAt = now
		s.tokens[record.HubID] = &updated
		return nil
	}

	clone := *record
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	s.tokens[record.HubID] = &clone
	return nil
}

// SaveCredentials inserts or updates a record including the PABX credentials.
func (s *Store) SaveCredentials(ctx context.Context, record *storage.TokenRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.tokens[record.HubID]; ok {
		updated := *existing
		updated.AccessToken = record.AccessToken
		updated.RefreshToken = record.RefreshToken
		updated.SonaxToken = record.SonaxToken
		updated.SonaxClientID = record.SonaxClientID
		updated.ExpiresAt = record.ExpiresAt
		updated.UpdatedAt = now
		s.tokens[record.HubID] = &updated
		return nil
	}

	clone := *record
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	s.tokens[record.HubID] = &clone
	return nil
}

// TokenByHubID returns a copy of the stored record for a hub id.
func (s *Store) TokenByHubID(ctx context.Context, hubID string) (*storage.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tokens[hubID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	clone := *record
	return &clone, nil
}

// HubExists reports whether a record exists for the hub id.
func (s *Store) HubExists(ctx context.Context, hubID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.tokens[hubID]
	return ok, nil
}

// HubData returns the stored PABX credential pair.
func (s *Store) HubData(ctx context.Context, hubID string) (*storage.HubData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.tokens[hubID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	return &storage.HubData{
		SonaxToken:    record.SonaxToken,
		SonaxClientID: record.SonaxClientID,
	}, nil
}

// ReplaceExtensions replaces the full mapping for a hub.
func (s *Store) ReplaceExtensions(ctx context.Context, hubID string, extensions map[string]string) error {
	if hubID == "" {
		return fmt.Errorf("hub id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(extensions) == 0 {
		delete(s.extensions, hubID)
		return nil
	}

	s.extensions[hubID] = maps.Clone(extensions)
	return nil
}

// ExtensionsByHubID returns the current mapping for a hub, empty when none.
func (s *Store) ExtensionsByHubID(ctx context.Context, hubID string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.extensions[hubID]
	if !ok {
		return map[string]string{}, nil
	}

	return maps.Clone(stored), nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}

func validateRecord(record *storage.TokenRecord) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.HubID == "" {
		return fmt.Errorf("hub id is required")
	}
	if record.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	return nil
}

// Interface guard.
var _ storage.Store = (*Store)(nil)

package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sonax/hubspot-connector/storage"
)

// SaveExtensions replaces the hub's entire extension mapping with the given
// one. Extensions are trimmed and blank entries dropped, so an empty or
// all-blank map clears the hub's mapping. The hub must already be connected.
func (s *Server) SaveExtensions(ctx context.Context, hubID string, extensions map[string]string) error {
	if hubID == "" {
		return fmt.Errorf("%w: hub id is required", ErrInvalidInput)
	}
	if extensions == nil {
		return fmt.Errorf("%w: extensions are required", ErrInvalidInput)
	}

	exists, err := s.store.HubExists(ctx, hubID)
	if err != nil {
		return fmt.Errorf("failed to check hub %s: %w", hubID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrHubNotFound, hubID)
	}

	cleaned := make(map[string]string, len(extensions))
	for userEmail, extension := range extensions {
		extension = strings.TrimSpace(extension)
		if userEmail == "" || extension == "" {
			continue
		}
		cleaned[userEmail] = extension
	}

	if err := s.store.ReplaceExtensions(ctx, hubID, cleaned); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrHubNotFound, hubID)
		}
		return fmt.Errorf("failed to replace extensions for hub %s: %w", hubID, err)
	}

	s.logger.Info("extensions replaced", "hub_id", hubID, "count", len(cleaned))
	if m := s.metrics(); m != nil {
		m.ExtensionsReplaced.Add(ctx, 1)
	}
	return nil
}

// Extensions returns the hub's extension mapping keyed by user email.
func (s *Server) Extensions(ctx context.Context, hubID string) (map[string]string, error) {
	if hubID == "" {
		return nil, fmt.Errorf("%w: hub id is required", ErrInvalidInput)
	}

	extensions, err := s.store.ExtensionsByHubID(ctx, hubID)
	if err != nil {
		return nil, fmt.Errorf("failed to load extensions for hub %s: %w", hubID, err)
	}
	return extensions, nil
}

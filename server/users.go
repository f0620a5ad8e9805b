package server

import (
	"context"
	"fmt"

	"github.com/sonax/hubspot-connector/providers"
)

// UserWithExtension is a HubSpot user joined with the phone extension mapped
// to them, if any.
type UserWithExtension struct {
	providers.User
	Extension string `json:"ramal,omitempty"`
}

// UsersWithExtensions fetches the hub's users from HubSpot and joins them
// with the stored extension mapping. The access token is refreshed first when
// needed.
func (s *Server) UsersWithExtensions(ctx context.Context, hubID string) ([]UserWithExtension, error) {
	token, err := s.ValidAccessToken(ctx, hubID)
	if err != nil {
		return nil, err
	}

	users, err := s.provider.Users(ctx, token.AccessToken)
	if err != nil {
		s.logger.Error("user listing failed", "hub_id", hubID, "error", err)
		s.metrics().RecordProviderError(ctx, "users")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	extensions, err := s.store.ExtensionsByHubID(ctx, hubID)
	if err != nil {
		return nil, fmt.Errorf("failed to load extensions for hub %s: %w", hubID, err)
	}

	joined := make([]UserWithExtension, 0, len(users))
	for _, user := range users {
		joined = append(joined, UserWithExtension{
			User:      user,
			Extension: extensions[user.Email],
		})
	}
	return joined, nil
}

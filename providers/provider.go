package providers

import (
	"context"

	"golang.org/x/oauth2"
)

// Provider abstracts the HubSpot OAuth endpoints and the small slice of its
// API the connector consumes. The abstraction exists so the token lifecycle
// and handlers can be exercised against a mock in tests.
type Provider interface {
	// Name returns the provider name (e.g., "hubspot")
	Name() string

	// ExchangeCode exchanges an authorization code for tokens.
	// Returns standard oauth2.Token; provider-specific extras such as hub_id
	// remain accessible through Token.Extra.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// RefreshToken mints a new access token from a refresh token.
	// The returned token may omit RefreshToken when the provider does not
	// rotate it.
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// AccountInfo fetches account metadata for the authenticated portal.
	// Used to resolve a hub id when the token response does not carry one;
	// the shape varies between API versions, hence the untyped map.
	AccountInfo(ctx context.Context, accessToken string) (map[string]any, error)

	// Users lists the users of the authenticated portal.
	Users(ctx context.Context, accessToken string) ([]User, error)
}

// User represents one user of a HubSpot portal. Field names follow the
// HubSpot settings API so the frontend sees the same shape it always has.
type User struct {
	// ID is the unique user identifier within the portal
	ID string `json:"id"`

	// Email is the user's login email address
	Email string `json:"email"`

	// FirstName is the user's first name, when set on the portal
	FirstName string `json:"firstName,omitempty"`

	// LastName is the user's last name, when set on the portal
	LastName string `json:"lastName,omitempty"`

	// SuperAdmin indicates portal-wide admin rights
	SuperAdmin bool `json:"superAdmin,omitempty"`
}

package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no record exists for the requested hub id.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the backing store could not be reached.
	ErrUnavailable = errors.New("storage unavailable")
)

// TokenRecord is the persisted OAuth state for one connected hub (portal).
// There is at most one record per hub id; writes are upserts keyed on HubID.
type TokenRecord struct {
	// HubID is the stable identifier of the connected account. Usually the
	// numeric HubSpot portal id, but may be a generated surrogate when the
	// provider never disclosed one.
	HubID string

	// AccessToken is the short-lived bearer credential for the HubSpot API.
	AccessToken string

	// RefreshToken mints new access tokens without user interaction.
	// May be empty; records without it cannot be refreshed.
	RefreshToken string

	// SonaxToken and SonaxClientID are the PABX-side credentials supplied
	// through the save-credentials endpoint. Empty for hubs connected via
	// the OAuth callback only.
	SonaxToken    string
	SonaxClientID string

	// ExpiresAt is the absolute instant after which AccessToken must not be
	// used. Always derived as now + expires_in at issuance or refresh time.
	ExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the access token must no longer be used at the
// given instant. The boundary is inclusive: a token expiring exactly now is
// expired.
func (r *TokenRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// HubData is the PABX credential pair returned by the get-hub-data endpoint.
type HubData struct {
	SonaxToken    string `json:"token_sonax"`
	SonaxClientID string `json:"client_id_sonax"`
}

// TokenStore persists one TokenRecord per hub id.
// All methods accept context.Context for tracing and cancellation.
type TokenStore interface {
	// SaveToken inserts a record or, when the hub id already exists, updates
	// AccessToken, RefreshToken, ExpiresAt and UpdatedAt. The PABX credential
	// columns and CreatedAt are left untouched on conflict. Idempotent.
	SaveToken(ctx context.Context, record *TokenRecord) error

	// SaveCredentials behaves like SaveToken but also writes the PABX
	// credential pair (SonaxToken, SonaxClientID).
	SaveCredentials(ctx context.Context, record *TokenRecord) error

	// TokenByHubID returns the record for a hub id, or ErrNotFound.
	TokenByHubID(ctx context.Context, hubID string) (*TokenRecord, error)

	// HubExists reports whether a record exists for the hub id. Lightweight
	// existence check used to validate requests before mutating related
	// entities.
	HubExists(ctx context.Context, hubID string) (bool, error)

	// HubData returns the stored PABX credential pair, or ErrNotFound.
	HubData(ctx context.Context, hubID string) (*HubData, error)
}

// ExtensionStore persists the user-email -> phone-extension mapping per hub.
type ExtensionStore interface {
	// ReplaceExtensions atomically replaces the full mapping for a hub:
	// entries absent from the new set are deleted. An empty map clears the
	// hub's mapping entirely. Values are stored as given; trimming and
	// empty-value filtering are the caller's concern.
	ReplaceExtensions(ctx context.Context, hubID string, extensions map[string]string) error

	// ExtensionsByHubID returns the current mapping, empty (non-nil) when the
	// hub has no stored extensions.
	ExtensionsByHubID(ctx context.Context, hubID string) (map[string]string, error)
}

// Store is the full persistence contract the connector is wired with.
type Store interface {
	TokenStore
	ExtensionStore

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close()
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sonax/hubspot-connector/instrumentation"
	"github.com/sonax/hubspot-connector/providers"
	"github.com/sonax/hubspot-connector/storage"
)

// Sentinel errors returned by the business layer. The HTTP adapter maps them
// onto status codes.
var (
	// ErrMissingCode indicates the OAuth callback carried no authorization
	// code. The provider is never contacted in this case.
	ErrMissingCode = errors.New("authorization code missing")

	// ErrExchangeFailed indicates the provider rejected the authorization
	// code or the exchange call failed.
	ErrExchangeFailed = errors.New("code exchange failed")

	// ErrHubNotFound indicates no token record exists for the hub id.
	// Deliberately distinct from "expired": callers that only need the
	// expiry answer must not confuse an unknown hub with a stale token.
	ErrHubNotFound = errors.New("hub not found")

	// ErrRefreshFailed indicates the refresh-token exchange failed. The
	// stored record is left untouched.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNoRefreshToken indicates the stored token is expired and the record
	// holds no refresh token to renew it with.
	ErrNoRefreshToken = errors.New("token expired and no refresh token stored")

	// ErrUpstream indicates a HubSpot API call (outside the token endpoints)
	// failed.
	ErrUpstream = errors.New("hubspot api request failed")

	// ErrInvalidInput indicates a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultTimezone is the civil time zone expiry timestamps are computed in.
const DefaultTimezone = "America/Sao_Paulo"

// Config holds business-layer configuration
type Config struct {
	// Timezone is the IANA name of the civil time zone used when deriving
	// expires_at timestamps. Default: America/Sao_Paulo.
	Timezone string

	// DefaultTokenTTL is applied when the provider's token response omits
	// expires_in. Default: 30 minutes (HubSpot's access token lifetime).
	DefaultTokenTTL time.Duration
}

// Server coordinates the provider and the store. Safe for concurrent use.
type Server struct {
	provider providers.Provider
	store    storage.Store
	logger   *slog.Logger

	location        *time.Location
	defaultTokenTTL time.Duration

	// refreshGroup collapses concurrent refreshes for the same hub id into a
	// single provider call; all waiters share the result.
	refreshGroup singleflight.Group

	instrumentation *instrumentation.Instrumentation
}

// New creates a new connector server
func New(provider providers.Provider, store storage.Store, config *Config, logger *slog.Logger) (*Server, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	timezone := config.Timezone
	if timezone == "" {
		timezone = DefaultTimezone
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}

	defaultTokenTTL := config.DefaultTokenTTL
	if defaultTokenTTL == 0 {
		defaultTokenTTL = 30 * time.Minute
	}

	return &Server{
		provider:        provider,
		store:           store,
		logger:          logger,
		location:        location,
		defaultTokenTTL: defaultTokenTTL,
	}, nil
}

// SetInstrumentation attaches OpenTelemetry instrumentation.
// Call before serving traffic.
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.instrumentation = inst
}

// Instrumentation returns the attached instrumentation, or nil.
func (s *Server) Instrumentation() *instrumentation.Instrumentation {
	return s.instrumentation
}

func (s *Server) metrics() *instrumentation.Metrics {
	if s.instrumentation == nil {
		return nil
	}
	return s.instrumentation.Metrics()
}

// Ping verifies the backing store is reachable. Used by health checks.
func (s *Server) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// now returns the current time in the configured civil time zone.
func (s *Server) now() time.Time {
	return time.Now().In(s.location)
}

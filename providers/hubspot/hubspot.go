// Package hubspot implements the providers.Provider interface for HubSpot.
package hubspot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/sonax/hubspot-connector/providers"
)

// Default HubSpot endpoints. Overridable through Config for tests.
const (
	DefaultAuthURL    = "https://app.hubspot.com/oauth/authorize"
	DefaultTokenURL   = "https://api.hubapi.com/oauth/v1/token"
	DefaultAPIBaseURL = "https://api.hubapi.com"
)

// Provider implements the providers.Provider interface for HubSpot.
type Provider struct {
	config     *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// Config holds HubSpot OAuth configuration
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// AuthURL, TokenURL and APIBaseURL override the production endpoints.
	// Leave empty outside of tests.
	AuthURL    string
	TokenURL   string
	APIBaseURL string

	// HTTPClient is an optional custom HTTP client. The default carries a
	// 30 second timeout so a hanging HubSpot call cannot pin a request
	// goroutine forever.
	HTTPClient *http.Client
}

// NewProvider creates a new HubSpot OAuth provider
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
				// HubSpot expects client credentials in the form body,
				// not in a basic auth header.
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: apiBaseURL,
		httpClient: httpClient,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "hubspot"
}

// ExchangeCode exchanges an authorization code for tokens
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	return token, nil
}

// RefreshToken mints a new access token from a refresh token
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tokenSource := p.config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: refreshToken,
	})

	newToken, err := tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	return newToken, nil
}

// AccountInfo fetches account metadata for the authenticated portal.
// The account-info endpoint is tried first; older portals only answer on the
// legacy integrations endpoint, so that is used as fallback.
func (p *Provider) AccountInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	info, err := p.getJSON(ctx, accessToken, "/account-info/v3/details")
	if err == nil {
		return info, nil
	}

	info, altErr := p.getJSON(ctx, accessToken, "/integrations/v1/me")
	if altErr != nil {
		return nil, fmt.Errorf("failed to fetch account info: %w", err)
	}

	return info, nil
}

// Users lists the users of the authenticated portal
func (p *Provider) Users(ctx context.Context, accessToken string) ([]providers.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+"/settings/v3/users", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build users request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("users request failed with status %d", resp.StatusCode)
	}

	var body struct {
		Results []providers.User `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode users response: %w", err)
	}

	if body.Results == nil {
		return []providers.User{}, nil
	}
	return body.Results, nil
}

func (p *Provider) getJSON(ctx context.Context, accessToken, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request to %s failed with status %d", path, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	return body, nil
}

// Interface guard.
var _ providers.Provider = (*Provider)(nil)

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sonax/hubspot-connector/internal/testutil"
	"github.com/sonax/hubspot-connector/providers/mock"
)

func TestCompleteAuthorizationMissingCode(t *testing.T) {
	provider := &mock.Provider{}
	srv, _ := newTestServer(t, provider)

	_, err := srv.CompleteAuthorization(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingCode)
	require.Zero(t, provider.ExchangeCalls(), "provider must not be contacted without a code")
}

func TestCompleteAuthorizationHubIDFromTokenResponse(t *testing.T) {
	provider := &mock.Provider{
		ExchangeCodeFunc: func(_ context.Context, code string) (*oauth2.Token, error) {
			require.Equal(t, "auth-code", code)
			// HubSpot's token endpoint answers hub_id as a JSON number.
			return testutil.OAuthTokenWithHubID("access", "refresh", time.Now().Add(30*time.Minute), float64(12345)), nil
		},
	}
	srv, store := newTestServer(t, provider)
	ctx := context.Background()

	result, err := srv.CompleteAuthorization(ctx, "auth-code")
	require.NoError(t, err)
	require.Equal(t, "12345", result.HubID)
	require.Equal(t, HubIDSourceTokenResponse, result.HubIDSource)
	require.Zero(t, provider.AccountInfoCalls(), "account api not needed when the token response carries a hub id")

	stored, err := store.TokenByHubID(ctx, "12345")
	require.NoError(t, err)
	require.Equal(t, "access", stored.AccessToken)
	require.Equal(t, "refresh", stored.RefreshToken)
}

func TestCompleteAuthorizationHubIDFromAccountAPI(t *testing.T) {
	provider := &mock.Provider{
		ExchangeCodeFunc: func(_ context.Context, _ string) (*oauth2.Token, error) {
			return testutil.OAuthToken("access", "refresh", time.Now().Add(30*time.Minute)), nil
		},
		AccountInfoFunc: func(_ context.Context, accessToken string) (map[string]any, error) {
			require.Equal(t, "access", accessToken)
			// portalId must win over the later fields.
			return map[string]any{"id": float64(999), "portalId": float64(67890)}, nil
		},
	}
	srv, _ := newTestServer(t, provider)

	result, err := srv.CompleteAuthorization(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, "67890", result.HubID)
	require.Equal(t, HubIDSourceAccountAPI, result.HubIDSource)
}

func TestCompleteAuthorizationSkipsNonNumericAccountFields(t *testing.T) {
	provider := &mock.Provider{
		ExchangeCodeFunc: func(_ context.Context, _ string) (*oauth2.Token, error) {
			return testutil.OAuthToken("access", "refresh", time.Now().Add(30*time.Minute)), nil
		},
		AccountInfoFunc: func(_ context.Context, _ string) (map[string]any, error) {
			// A portalId that is not a portal number must not be adopted as
			// the hub id; the scan keeps going until a numeric field shows up.
			return map[string]any{"portalId": "acme-inc", "accountId": float64(777)}, nil
		},
	}
	srv, _ := newTestServer(t, provider)

	result, err := srv.CompleteAuthorization(context.Background(), "auth-code")
	require.NoError(t, err)
	require.Equal(t, "777", result.HubID)
	require.Equal(t, HubIDSourceAccountAPI, result.HubIDSource)
}

func TestCompleteAuthorizationSurrogateHubID(t *testing.T) {
	provider := &mock.Provider{
		ExchangeCodeFunc: func(_ context.Context, _ string) (*oauth2.Token, error) {
			return testutil.OAuthToken("access", "refresh", time.Now().Add(30*time.Minute)), nil
		},
		AccountInfoFunc: func(_ context.Context, _ string) (map[string]any, error) {
			return nil, fmt.Errorf("account api down")
		},
	}
	srv, store := newTestServer(t, provider)
	ctx := context.Background()

	result, err := srv.CompleteAuthorization(ctx, "auth-code")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(result.HubID, "hub_"), "surrogate id should carry the hub_ prefix, got %s", result.HubID)
	require.Equal(t, HubIDSourceGenerated, result.HubIDSource)

	// Tokens are never dropped even without a real portal id.
	_, err = store.TokenByHubID(ctx, result.HubID)
	require.NoError(t, err)
}

func TestCompleteAuthorizationExchangeFailure(t *testing.T) {
	provider := &mock.Provider{
		ExchangeCodeFunc: func(_ context.Context, _ string) (*oauth2.Token, error) {
			return nil, fmt.Errorf("invalid code")
		},
	}
	srv, _ := newTestServer(t, provider)

	_, err := srv.CompleteAuthorization(context.Background(), "bad-code")
	require.ErrorIs(t, err, ErrExchangeFailed)
}

func TestCompleteAuthorizationDefaultTTL(t *testing.T) {
	provider := &mock.Provider{
		ExchangeCodeFunc: func(_ context.Context, _ string) (*oauth2.Token, error) {
			// No expiry in the token response.
			return testutil.OAuthTokenWithHubID("access", "refresh", time.Time{}, "12345"), nil
		},
	}
	srv, _ := newTestServer(t, provider)

	result, err := srv.CompleteAuthorization(context.Background(), "auth-code")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(30*time.Minute), result.ExpiresAt, 5*time.Second)
}

func TestNumericID(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "12345", "12345"},
		{"float64", float64(12345), "12345"},
		{"int", 12345, "12345"},
		{"int64", int64(12345), "12345"},
		{"json number", json.Number("12345"), "12345"},
		{"non-numeric string", "acme-inc", ""},
		{"fractional float64", 123.45, ""},
		{"float64 beyond int64", 1e30, ""},
		{"non-numeric json number", json.Number("12.5"), ""},
		{"bool", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, numericID(tt.in))
		})
	}
}

// Package testutil provides shared fixtures for the connector's tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"golang.org/x/oauth2"

	"github.com/sonax/hubspot-connector/storage"
)

// RandomID returns a random hex string usable as a unique hub id in tests.
func RandomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// TokenRecord builds a stored token record expiring at the given instant.
func TokenRecord(hubID string, expiresAt time.Time) *storage.TokenRecord {
	return &storage.TokenRecord{
		HubID:        hubID,
		AccessToken:  "access-" + hubID,
		RefreshToken: "refresh-" + hubID,
		ExpiresAt:    expiresAt,
	}
}

// OAuthToken builds a provider token response.
func OAuthToken(access, refresh string, expiry time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       expiry,
	}
}

// OAuthTokenWithHubID builds a provider token response whose extra fields
// carry a hub_id, the way HubSpot's token endpoint answers.
func OAuthTokenWithHubID(access, refresh string, expiry time.Time, hubID any) *oauth2.Token {
	token := OAuthToken(access, refresh, expiry)
	return token.WithExtra(map[string]any{"hub_id": hubID})
}

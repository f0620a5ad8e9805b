package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sonax/hubspot-connector/storage"
)

// Hub id resolution sources, in order of trust.
const (
	HubIDSourceTokenResponse = "token_response"
	HubIDSourceAccountAPI    = "account_api"
	HubIDSourceGenerated     = "generated"
)

// accountIDFields are the keys probed on the account-info response, most
// specific first. HubSpot has shipped several shapes of this payload over
// the years.
var accountIDFields = []string{"portalId", "hubId", "portal_id", "hub_id", "accountId", "id"}

// AuthorizationResult is the outcome of a completed OAuth flow.
type AuthorizationResult struct {
	HubID       string
	HubIDSource string
	ExpiresAt   time.Time
}

// CompleteAuthorization exchanges the callback's authorization code for
// tokens, resolves the hub id and persists the token record.
//
// The hub id comes from the token response when present, then from the
// account-info API, and as a last resort a surrogate id is generated so the
// tokens are never dropped.
func (s *Server) CompleteAuthorization(ctx context.Context, code string) (*AuthorizationResult, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	token, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		s.logger.Error("code exchange failed", "error", err)
		s.metrics().RecordProviderError(ctx, "exchange_code")
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	hubID, source := s.resolveHubID(ctx, token.Extra("hub_id"), token.AccessToken)

	expiresAt := token.Expiry.In(s.location)
	if token.Expiry.IsZero() {
		expiresAt = s.now().Add(s.defaultTokenTTL)
	}

	record := &storage.TokenRecord{
		HubID:        hubID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
	}
	if err := s.store.SaveToken(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist tokens for hub %s: %w", hubID, err)
	}

	s.logger.Info("authorization completed",
		"hub_id", hubID,
		"hub_id_source", source,
		"expires_at", expiresAt)
	s.metrics().RecordCodeExchange(ctx, source)

	return &AuthorizationResult{
		HubID:       hubID,
		HubIDSource: source,
		ExpiresAt:   expiresAt,
	}, nil
}

// resolveHubID determines the hub id for a freshly exchanged token.
func (s *Server) resolveHubID(ctx context.Context, extra any, accessToken string) (string, string) {
	if id := numericID(extra); id != "" {
		return id, HubIDSourceTokenResponse
	}

	info, err := s.provider.AccountInfo(ctx, accessToken)
	if err != nil {
		s.logger.Warn("account info lookup failed", "error", err)
		s.metrics().RecordProviderError(ctx, "account_info")
	} else {
		for _, field := range accountIDFields {
			if id := numericID(info[field]); id != "" {
				return id, HubIDSourceAccountAPI
			}
		}
		s.logger.Warn("account info carried no recognizable hub id")
	}

	id := "hub_" + uuid.NewString()
	s.logger.Warn("generated surrogate hub id", "hub_id", id)
	return id, HubIDSourceGenerated
}

// numericID normalizes the many shapes a hub id can arrive in (JSON number
// decoded as float64, string, json.Number) into a decimal string. Returns ""
// when the value is absent or not numeric-parseable, so callers fall through
// to the next candidate field.
func numericID(v any) string {
	switch id := v.(type) {
	case string:
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return ""
		}
		return id
	case float64:
		n := int64(id)
		if float64(n) != id {
			return ""
		}
		return strconv.FormatInt(n, 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	case json.Number:
		if _, err := id.Int64(); err != nil {
			return ""
		}
		return id.String()
	default:
		return ""
	}
}

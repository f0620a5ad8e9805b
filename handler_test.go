package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/sonax/hubspot-connector/internal/testutil"
	"github.com/sonax/hubspot-connector/providers"
	"github.com/sonax/hubspot-connector/providers/mock"
	"github.com/sonax/hubspot-connector/security"
	"github.com/sonax/hubspot-connector/server"
	"github.com/sonax/hubspot-connector/storage/memory"
)

func newTestHandler(t *testing.T, provider *mock.Provider, limiter *security.RateLimiter) (http.Handler, *memory.Store) {
	t.Helper()

	store := memory.New()
	srv, err := server.New(provider, store, nil, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	h := NewHandler(srv, slog.New(slog.DiscardHandler), limiter)
	return h.Routes(), store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestSaveCredentialsAndValidateHub(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, body := doJSON(t, handler, http.MethodPost, "/api/save-credentials", map[string]any{
		"token":        "sonax-token",
		"clientId":     "sonax-client",
		"accessToken":  "access",
		"refreshToken": "refresh",
		"expiresIn":    1800,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	hubID, _ := body["hubId"].(string)
	if !strings.HasPrefix(hubID, "hub_") {
		t.Fatalf("expected generated hub id, got %q", hubID)
	}

	rec, body = doJSON(t, handler, http.MethodGet, "/api/validate-hub?hub_id="+hubID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["valid"] != true {
		t.Errorf("expected valid true, got %v", body["valid"])
	}

	rec, body = doJSON(t, handler, http.MethodGet, "/api/validate-hub?hub_id=unknown", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["valid"] != false {
		t.Errorf("expected valid false, got %v", body["valid"])
	}
}

func TestValidateHubMissingParam(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/validate-hub", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body["valid"] != false {
		t.Errorf("expected valid false, got %v", body["valid"])
	}
	// The body is {"valid": false} and nothing else.
	if _, ok := body["error"]; ok {
		t.Errorf("unexpected error field in body: %v", body)
	}
}

func TestSaveCredentialsValidation(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/save-credentials", map[string]any{
		"token": "only-this",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetHubData(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, body := doJSON(t, handler, http.MethodPost, "/api/save-credentials", map[string]any{
		"token":        "sonax-token",
		"clientId":     "sonax-client",
		"accessToken":  "access",
		"refreshToken": "refresh",
		"expiresIn":    1800,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save-credentials failed: %d", rec.Code)
	}
	hubID := body["hubId"].(string)

	rec, body = doJSON(t, handler, http.MethodGet, "/api/get-hub-data?hub_id="+hubID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %v", body)
	}
	if data["token_sonax"] != "sonax-token" || data["client_id_sonax"] != "sonax-client" {
		t.Errorf("unexpected hub data: %v", data)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/get-hub-data?hub_id=unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestTokenEndpointRefreshesExpired(t *testing.T) {
	provider := &mock.Provider{
		RefreshTokenFunc: func(_ context.Context, _ string) (*oauth2.Token, error) {
			return testutil.OAuthToken("new-access", "new-refresh", time.Now().Add(30*time.Minute)), nil
		},
	}
	handler, store := newTestHandler(t, provider, nil)

	if err := store.SaveToken(context.Background(), testutil.TokenRecord("12345", time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	rec, body := doJSON(t, handler, http.MethodGet, "/token/12345", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["accessToken"] != "new-access" {
		t.Errorf("expected refreshed token, got %v", body["accessToken"])
	}
	if body["renewed"] != true {
		t.Errorf("expected renewed true, got %v", body["renewed"])
	}
}

func TestTokenEndpointUnknownHub(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, body := doJSON(t, handler, http.MethodGet, "/token/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body["error"] == nil {
		t.Error("expected an error message")
	}
}

func TestTokenStatus(t *testing.T) {
	handler, store := newTestHandler(t, &mock.Provider{}, nil)

	if err := store.SaveToken(context.Background(), testutil.TokenRecord("12345", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	rec, body := doJSON(t, handler, http.MethodGet, "/token/status/12345", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["hasToken"] != true || body["expired"] != false {
		t.Errorf("unexpected status: %v", body)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/token/status/unknown", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetUsers(t *testing.T) {
	provider := &mock.Provider{
		UsersFunc: func(_ context.Context, _ string) ([]providers.User, error) {
			return []providers.User{
				{ID: "1", Email: "a@example.com"},
				{ID: "2", Email: "b@example.com"},
			}, nil
		},
	}
	handler, store := newTestHandler(t, provider, nil)
	ctx := context.Background()

	if err := store.SaveToken(ctx, testutil.TokenRecord("12345", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}
	if err := store.ReplaceExtensions(ctx, "12345", map[string]string{"a@example.com": "100"}); err != nil {
		t.Fatalf("ReplaceExtensions failed: %v", err)
	}

	rec, body := doJSON(t, handler, http.MethodGet, "/api/get-users?hub_id=12345", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}
	users, ok := body["users"].([]any)
	if !ok || len(users) != 2 {
		t.Fatalf("expected two users, got %v", body["users"])
	}
	first := users[0].(map[string]any)
	if first["ramal"] != "100" {
		t.Errorf("expected merged extension 100, got %v", first["ramal"])
	}
	extensions, ok := body["extensions"].(map[string]any)
	if !ok || extensions["a@example.com"] != "100" {
		t.Errorf("unexpected extensions: %v", body["extensions"])
	}
}

func TestGetUsersUnknownHubUnauthorized(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, body := doJSON(t, handler, http.MethodGet, "/api/get-users?hub_id=unknown", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body["success"] != false {
		t.Errorf("expected success false, got %v", body["success"])
	}
}

func TestGetUsersRefreshFailureUnauthorized(t *testing.T) {
	provider := &mock.Provider{
		RefreshTokenFunc: func(_ context.Context, _ string) (*oauth2.Token, error) {
			return nil, fmt.Errorf("invalid_grant")
		},
	}
	handler, store := newTestHandler(t, provider, nil)

	if err := store.SaveToken(context.Background(), testutil.TokenRecord("12345", time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	rec, _ := doJSON(t, handler, http.MethodGet, "/api/get-users?hub_id=12345", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestSaveExtensions(t *testing.T) {
	handler, store := newTestHandler(t, &mock.Provider{}, nil)
	ctx := context.Background()

	if err := store.SaveToken(ctx, testutil.TokenRecord("12345", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	rec, body := doJSON(t, handler, http.MethodPost, "/api/save-extensions", map[string]any{
		"hubId":      "12345",
		"extensions": map[string]string{"a@example.com": "100"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body["success"] != true {
		t.Errorf("expected success true, got %v", body["success"])
	}

	stored, err := store.ExtensionsByHubID(ctx, "12345")
	if err != nil {
		t.Fatalf("ExtensionsByHubID failed: %v", err)
	}
	if stored["a@example.com"] != "100" {
		t.Errorf("extension not stored: %v", stored)
	}
}

func TestSaveExtensionsMissingHubID(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/save-extensions", map[string]any{
		"extensions": map[string]string{"a@example.com": "100"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSaveExtensionsUnknownHub(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, _ := doJSON(t, handler, http.MethodPost, "/api/save-extensions", map[string]any{
		"hubId":      "unknown",
		"extensions": map[string]string{"a@example.com": "100"},
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestOAuthCallbackMissingCode(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestOAuthCallbackSuccessPage(t *testing.T) {
	provider := &mock.Provider{
		ExchangeCodeFunc: func(_ context.Context, _ string) (*oauth2.Token, error) {
			return testutil.OAuthTokenWithHubID("access", "refresh", time.Now().Add(30*time.Minute), "12345"), nil
		},
	}
	handler, _ := newTestHandler(t, provider, nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=auth-code", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	html := rec.Body.String()
	if !strings.Contains(html, "12345") {
		t.Error("success page should show the portal id")
	}
	if !strings.Contains(html, "integrations-settings/12345/installed") {
		t.Error("success page should link back to HubSpot")
	}
}

func TestOAuthCallbackExchangeFailurePage(t *testing.T) {
	provider := &mock.Provider{
		ExchangeCodeFunc: func(_ context.Context, _ string) (*oauth2.Token, error) {
			return nil, fmt.Errorf("invalid code")
		},
	}
	handler, _ := newTestHandler(t, provider, nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=bad", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Erro ao autenticar") {
		t.Error("expected the error page")
	}
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, body := doJSON(t, handler, http.MethodGet, "/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body["error"] == nil {
		t.Error("expected a JSON error body")
	}
}

func TestCORSPreflight(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/get-users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected wildcard CORS origin")
	}
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(t, &mock.Provider{}, nil)

	rec, body := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("expected ok, got %v", body["status"])
	}
}

func TestRateLimit(t *testing.T) {
	limiter := security.NewRateLimiter(1, 1, slog.New(slog.DiscardHandler))
	defer limiter.Stop()

	handler, _ := newTestHandler(t, &mock.Provider{}, limiter)

	rec, _ := doJSON(t, handler, http.MethodGet, "/api/validate-hub?hub_id=x", nil)
	if rec.Code == http.StatusTooManyRequests {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec, _ = doJSON(t, handler, http.MethodGet, "/api/validate-hub?hub_id=x", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
}

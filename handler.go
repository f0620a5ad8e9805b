// Package connector exposes the HubSpot PABX connector over HTTP: the OAuth
// callback, token retrieval endpoints and the JSON API used by the PABX
// frontend to pair hubs and manage phone extension mappings.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/sonax/hubspot-connector/instrumentation"
	"github.com/sonax/hubspot-connector/security"
	"github.com/sonax/hubspot-connector/server"
)

// Handler is the HTTP adapter over the connector server.
type Handler struct {
	server  *server.Server
	logger  *slog.Logger
	limiter *security.RateLimiter
	metrics *instrumentation.Metrics
	tracer  trace.Tracer
}

// NewHandler creates the HTTP adapter. The rate limiter is optional; pass nil
// to disable per-IP limiting.
func NewHandler(srv *server.Server, logger *slog.Logger, limiter *security.RateLimiter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server:  srv,
		logger:  logger,
		limiter: limiter,
	}
	if inst := srv.Instrumentation(); inst != nil {
		h.metrics = inst.Metrics()
		h.tracer = inst.Tracer("http")
	}
	return h
}

// Routes returns the connector's HTTP handler with all middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.HandleFunc("GET /oauth/callback", h.handleOAuthCallback)
	mux.HandleFunc("GET /token/{hubId}", h.handleToken)
	mux.HandleFunc("GET /token/status/{hubId}", h.handleTokenStatus)
	mux.HandleFunc("POST /api/save-credentials", h.handleSaveCredentials)
	mux.HandleFunc("GET /api/validate-hub", h.handleValidateHub)
	mux.HandleFunc("GET /api/get-users", h.handleGetUsers)
	mux.HandleFunc("POST /api/save-extensions", h.handleSaveExtensions)
	mux.HandleFunc("GET /api/get-hub-data", h.handleGetHubData)
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("/", h.handleNotFound)

	return h.recoverMiddleware(h.corsMiddleware(h.logMiddleware(h.rateLimitMiddleware(mux))))
}

// startSpan begins a span for a handler. Without a tracer the no-op span
// from the request context is returned, so callers never nil-check.
func (h *Handler) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	ctx := r.Context()
	if h.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return h.tracer.Start(ctx, name)
}

// handleIndex serves the static landing page.
func (h *Handler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	h.serveIndex(w)
}

// hubIDSourceLabels translate resolution sources for the success page.
var hubIDSourceLabels = map[string]string{
	server.HubIDSourceTokenResponse: "OAuth Response",
	server.HubIDSourceAccountAPI:    "Account API",
	server.HubIDSourceGenerated:     "Gerado",
}

// handleOAuthCallback completes the authorization flow started at HubSpot.
// Responses are HTML: this endpoint is opened in the user's browser.
func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "oauth.callback")
	defer span.End()

	code := r.URL.Query().Get("code")
	if code == "" {
		instrumentation.SetSpanError(span, "missing authorization code")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Código de autorização não encontrado"))
		return
	}

	result, err := h.server.CompleteAuthorization(ctx, code)
	if err != nil {
		instrumentation.RecordError(span, err)
		h.serveCallbackError(w, http.StatusInternalServerError,
			"Não foi possível concluir a autenticação com o HubSpot. Tente instalar o aplicativo novamente.")
		return
	}
	instrumentation.AddHubAttributes(span, result.HubID)
	instrumentation.SetSpanSuccess(span)

	label := hubIDSourceLabels[result.HubIDSource]
	if label == "" {
		label = result.HubIDSource
	}
	h.serveCallbackSuccess(w, result.HubID, label, result.ExpiresAt)
}

// handleToken returns a valid access token for the hub, refreshing first when
// the stored one has expired.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "token.get")
	defer span.End()

	hubID := r.PathValue("hubId")
	instrumentation.AddHubAttributes(span, hubID)

	token, err := h.server.ValidAccessToken(ctx, hubID)
	if err != nil {
		instrumentation.RecordError(span, err)
		if errors.Is(err, server.ErrHubNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Token não encontrado"})
			return
		}
		h.writeError(w, apiError(err))
		return
	}
	instrumentation.SetSpanSuccess(span)

	h.writeJSON(w, http.StatusOK, token)
}

// handleTokenStatus reports whether the hub's token exists and is valid.
func (h *Handler) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	hubID := r.PathValue("hubId")

	status, err := h.server.Status(r.Context(), hubID)
	if err != nil {
		if errors.Is(err, server.ErrHubNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Token não encontrado"})
			return
		}
		h.writeError(w, apiError(err))
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// handleSaveCredentials registers a hub manually: PABX credentials plus a
// token pair obtained out of band.
func (h *Handler) handleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	var creds server.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.writeError(w, NewAPIError(ErrorCodeInvalidRequest, "Corpo da requisição inválido", http.StatusBadRequest))
		return
	}

	hubID, err := h.server.SaveCredentials(r.Context(), &creds)
	if err != nil {
		h.writeError(w, apiError(err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"hubId":   hubID,
	})
}

// handleValidateHub reports whether a hub id is known to the connector.
func (h *Handler) handleValidateHub(w http.ResponseWriter, r *http.Request) {
	hubID := r.URL.Query().Get("hub_id")
	if hubID == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false})
		return
	}

	valid, err := h.server.ValidateHub(r.Context(), hubID)
	if err != nil {
		h.writeError(w, apiError(err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// handleGetUsers lists the hub's HubSpot users merged with their stored
// extensions. Token problems (unknown hub, failed refresh) are authentication
// failures from the caller's point of view, hence 401.
func (h *Handler) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	hubID := r.URL.Query().Get("hub_id")
	if hubID == "" {
		h.writeError(w, NewAPIError(ErrorCodeInvalidRequest, "hub_id é obrigatório", http.StatusBadRequest))
		return
	}

	users, err := h.server.UsersWithExtensions(r.Context(), hubID)
	if err != nil {
		if errors.Is(err, server.ErrHubNotFound) ||
			errors.Is(err, server.ErrRefreshFailed) ||
			errors.Is(err, server.ErrNoRefreshToken) {
			h.writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "Não foi possível obter um token válido para este hub",
			})
			return
		}
		h.writeError(w, apiError(err))
		return
	}

	extensions, err := h.server.Extensions(r.Context(), hubID)
	if err != nil {
		h.writeError(w, apiError(err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"users":      users,
		"extensions": extensions,
	})
}

// saveExtensionsRequest is the body of POST /api/save-extensions.
type saveExtensionsRequest struct {
	HubID      string            `json:"hubId"`
	Extensions map[string]string `json:"extensions"`
}

// handleSaveExtensions replaces the hub's full extension mapping.
func (h *Handler) handleSaveExtensions(w http.ResponseWriter, r *http.Request) {
	var req saveExtensionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, NewAPIError(ErrorCodeInvalidRequest, "Corpo da requisição inválido", http.StatusBadRequest))
		return
	}
	if req.HubID == "" {
		h.writeError(w, NewAPIError(ErrorCodeInvalidRequest, "hubId é obrigatório", http.StatusBadRequest))
		return
	}
	if req.Extensions == nil {
		req.Extensions = map[string]string{}
	}

	if err := h.server.SaveExtensions(r.Context(), req.HubID, req.Extensions); err != nil {
		h.writeError(w, apiError(err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleGetHubData returns the PABX credential pair stored for the hub.
func (h *Handler) handleGetHubData(w http.ResponseWriter, r *http.Request) {
	hubID := r.URL.Query().Get("hub_id")
	if hubID == "" {
		h.writeError(w, NewAPIError(ErrorCodeInvalidRequest, "hub_id é obrigatório", http.StatusBadRequest))
		return
	}

	data, err := h.server.HubData(r.Context(), hubID)
	if err != nil {
		h.writeError(w, apiError(err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

// handleHealthz reports process and database health.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.server.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNotFound answers unmatched routes with JSON instead of the default
// plain-text 404.
func (h *Handler) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "Rota não encontrada"})
}

// writeJSON writes v as the JSON response body with the given status.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes the standard JSON error envelope for an API error.
func (h *Handler) writeError(w http.ResponseWriter, apiErr *APIError) {
	h.writeJSON(w, apiErr.Status, map[string]any{
		"success": false,
		"error":   apiErr.Description,
	})
}

// corsMiddleware allows cross-origin calls from the PABX frontend. The API is
// consumed from arbitrary customer domains, hence the wildcard.
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logMiddleware logs each request and records HTTP metrics.
func (h *Handler) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		h.logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration_ms", time.Since(start).Milliseconds())
		h.metrics.RecordHTTPRequest(r.Context(), r.URL.Path, r.Method, recorder.status, start)
	})
}

// rateLimitMiddleware rejects clients exceeding the per-IP limit. Health
// checks are exempt so orchestrators are never throttled.
func (h *Handler) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter == nil || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if !h.limiter.Allow(ip) {
			if h.metrics != nil {
				h.metrics.RateLimitExceeded.Add(r.Context(), 1)
			}
			h.writeError(w, NewAPIError(ErrorCodeRateLimitExceeded,
				"Muitas requisições, tente novamente em instantes", http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware converts panics into 500 responses instead of killing the
// connection.
func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				h.writeError(w, NewAPIError(ErrorCodeInternalError,
					"Erro interno do servidor", http.StatusInternalServerError))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller's IP for rate limiting, falling back to the
// raw remote address when it has no port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

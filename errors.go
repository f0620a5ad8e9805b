package connector

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sonax/hubspot-connector/server"
	"github.com/sonax/hubspot-connector/storage"
)

// API error codes as constants
const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeHubNotFound       = "hub_not_found"
	ErrorCodeTokenUnavailable  = "token_unavailable"
	ErrorCodeUpstreamError     = "upstream_error"
	ErrorCodeStorageError      = "storage_error"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrorCodeNotFound          = "not_found"
	ErrorCodeInternalError     = "internal_error"
)

// APIError represents an error response of the JSON API
type APIError struct {
	Code        string // stable machine-readable code
	Description string // human-readable error description
	Status      int    // HTTP status code
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewAPIError creates a new API error
func NewAPIError(code, description string, status int) *APIError {
	return &APIError{
		Code:        code,
		Description: description,
		Status:      status,
	}
}

// apiError maps business-layer errors onto the HTTP taxonomy. Unrecognized
// errors become a generic 500 so internals never leak to callers.
func apiError(err error) *APIError {
	switch {
	case errors.Is(err, server.ErrInvalidInput), errors.Is(err, server.ErrMissingCode):
		return NewAPIError(ErrorCodeInvalidRequest, err.Error(), http.StatusBadRequest)
	case errors.Is(err, server.ErrHubNotFound):
		return NewAPIError(ErrorCodeHubNotFound, "Hub não encontrado", http.StatusNotFound)
	case errors.Is(err, server.ErrNoRefreshToken), errors.Is(err, server.ErrRefreshFailed):
		return NewAPIError(ErrorCodeTokenUnavailable, "Falha ao renovar o token de acesso", http.StatusInternalServerError)
	case errors.Is(err, server.ErrExchangeFailed), errors.Is(err, server.ErrUpstream):
		return NewAPIError(ErrorCodeUpstreamError, "Falha na comunicação com o HubSpot", http.StatusInternalServerError)
	case errors.Is(err, storage.ErrUnavailable):
		return NewAPIError(ErrorCodeStorageError, "Banco de dados indisponível", http.StatusInternalServerError)
	default:
		return NewAPIError(ErrorCodeInternalError, "Erro interno do servidor", http.StatusInternalServerError)
	}
}

// Package server implements the connector's business logic: completing the
// HubSpot OAuth flow, the token lifecycle (expiry check and refresh on
// demand), PABX credential registration and the per-hub phone extension
// mapping.
//
// The package is transport-agnostic; the HTTP adapter in the root package
// maps its errors onto status codes and response bodies.
package server

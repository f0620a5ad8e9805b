// Package providers defines the OAuth provider interface used by the
// connector.
//
// Implementations are provided in subpackages:
//   - providers/hubspot: HubSpot OAuth and API provider
//   - providers/mock: scripted provider for testing
//
// Provider implementations handle:
//   - Authorization code exchange
//   - Token refresh (refresh_token grant)
//   - Account metadata lookup (hub id resolution)
//   - Portal user listing
package providers

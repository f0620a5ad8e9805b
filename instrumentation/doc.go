// Package instrumentation provides OpenTelemetry instrumentation for the
// connector.
//
// Metrics cover the HTTP layer (request counts and durations), the OAuth
// lifecycle (code exchanges, token refreshes), provider API failures and rate
// limit rejections. Spans are created for the OAuth callback and the
// refresh-on-demand path.
//
// When disabled (the default for local development) all instruments are
// backed by no-op providers and carry zero overhead.
//
// # Available Metrics
//
//   - connector.http.requests.total{endpoint, method, status}
//   - connector.http.request.duration{endpoint}
//   - connector.oauth.code.exchanged{hub_id_source}
//   - connector.oauth.token.refreshed{result}
//   - connector.provider.api.errors.total{operation}
//   - connector.rate_limit.exceeded
//   - connector.extensions.replaced
package instrumentation

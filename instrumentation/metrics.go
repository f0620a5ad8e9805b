package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the connector
type Metrics struct {
	// HTTP layer
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// OAuth lifecycle
	CodeExchanged  metric.Int64Counter
	TokenRefreshed metric.Int64Counter

	// Provider
	ProviderAPIErrors metric.Int64Counter

	// Extension mapping
	ExtensionsReplaced metric.Int64Counter

	// Security
	RateLimitExceeded metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")
	providerMeter := inst.Meter("provider")

	var err error
	m.HTTPRequestsTotal, err = httpMeter.Int64Counter(
		"connector.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"connector.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	m.CodeExchanged, err = serverMeter.Int64Counter(
		"connector.oauth.code.exchanged",
		metric.WithDescription("Number of authorization codes exchanged for tokens"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth.code.exchanged counter: %w", err)
	}

	m.TokenRefreshed, err = serverMeter.Int64Counter(
		"connector.oauth.token.refreshed",
		metric.WithDescription("Number of access token refreshes attempted"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create oauth.token.refreshed counter: %w", err)
	}

	m.ProviderAPIErrors, err = providerMeter.Int64Counter(
		"connector.provider.api.errors.total",
		metric.WithDescription("Number of failed HubSpot API calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider.api.errors.total counter: %w", err)
	}

	m.ExtensionsReplaced, err = serverMeter.Int64Counter(
		"connector.extensions.replaced",
		metric.WithDescription("Number of extension mapping replacements"),
		metric.WithUnit("{replace}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create extensions.replaced counter: %w", err)
	}

	m.RateLimitExceeded, err = httpMeter.Int64Counter(
		"connector.rate_limit.exceeded",
		metric.WithDescription("Number of requests rejected by the rate limiter"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.exceeded counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records one handled HTTP request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, endpoint, method string, status int, start time.Time) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("method", method),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordTokenRefresh records one refresh attempt with its result label.
func (m *Metrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.TokenRefreshed.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordCodeExchange records one completed authorization, labelled with how
// the hub id was resolved.
func (m *Metrics) RecordCodeExchange(ctx context.Context, hubIDSource string) {
	if m == nil {
		return
	}
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(attribute.String("hub_id_source", hubIDSource)))
}

// RecordProviderError records one failed provider API call.
func (m *Metrics) RecordProviderError(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.ProviderAPIErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

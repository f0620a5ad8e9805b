// Package security provides security-related functionality for the connector:
// encryption of credentials at rest and per-IP request rate limiting.
//
// The Encryptor protects the columns that hold long-lived credentials
// (HubSpot refresh tokens and PABX tokens) with AES-256-GCM. Encryption is
// opt-in: without a configured key the Encryptor passes values through
// unchanged, which keeps local development friction-free.
//
// The RateLimiter applies a token bucket per client IP with periodic cleanup
// of idle buckets so memory stays bounded under address churn.
package security

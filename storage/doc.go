// Package storage provides interfaces and record types for persisting HubSpot
// OAuth tokens and per-user phone extension mappings.
//
// The storage package defines the two core interfaces used throughout the
// connector:
//   - TokenStore: one token record per connected hub (portal), upserted on
//     hub id conflict
//   - ExtensionStore: the set of user-email -> extension mappings for a hub,
//     replaced wholesale on every save
//
// Implementations are provided in subpackages:
//   - storage/memory: In-memory storage for development and testing
//   - storage/postgres: PostgreSQL storage for production (pgx connection pool)
package storage

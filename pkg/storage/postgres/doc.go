// Package postgres manages the PostgreSQL connections, schema migrations and
// the Redis-backed cache layer for the organization search API.
//
// The ConnectionManager pools a primary plus optional read replicas; reads
// round-robin across healthy replicas and fall back to the primary. The
// migration runner is idempotent and installs the weighted full-text index
// (tsvector column, GIN index, row trigger) the search pipeline depends on.
package postgres

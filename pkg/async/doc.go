// Package async provides a panic-safe worker pool for concurrent batch
// work, used by the bulk organization importer.
//
// Each task runs under its own timeout-bounded context with panic
// recovery, so a single malformed record cannot abort an import run.
// Errors are collected on a buffered channel instead of stopping the
// pool.
package async

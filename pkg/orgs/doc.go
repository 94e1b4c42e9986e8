// Package orgs provides the organization domain model and PostgreSQL store.
//
// # Overview
//
// Organizations are register records (name, jurisdiction, legal form, status,
// free-text description) with semi-structured participation data describing
// the people involved. Every row carries a derived weighted tsvector used by
// pkg/search for ranked full-text search:
//
//	Tier A (highest): organization name
//	Tier B:           description
//	Tier C (lowest):  participant names
//
// The vector is recomputed synchronously on every insert or update, both by
// the store's upsert statement and by a database trigger covering writes that
// bypass the store, so a read can never observe a stale index.
//
// # Usage Example
//
// Look up one organization:
//
//	org, err := store.GetOrganization(ctx, "DE-HRB-12345")
//	if errors.Is(err, orgs.ErrNotFound) {
//		// 404
//	}
//
// # Related Packages
//
//   - pkg/search: ranked search over the weighted vector
//   - pkg/storage/postgres: connection management, migrations, caching
package orgs

// Package search implements ranked full-text search over organizations
// using PostgreSQL FTS.
//
// # Overview
//
// A SearchFilter carries the optional request filters. The query builder
// translates it into a single parameterized SELECT: a weighted tsvector
// predicate for the name filter (with a substring fallback for tokens the
// text parser misses), case-insensitive substring predicates for
// jurisdiction and legal form, and an exact predicate for status. Provided
// filters compose conjunctively. Results are ordered by ts_rank over the
// weighted index when a text predicate is present, with the organization
// identifier as the tiebreak, so pagination is deterministic.
//
// The Service executes the page query and a count query sharing the same
// predicates in parallel; the count is independent of limit/offset.
//
// # Usage
//
//	svc := search.NewService(db)
//	resp, err := svc.Search(ctx, search.Filter{Name: "acme", Limit: 10})
//
// # Related Packages
//
//   - pkg/orgs: organization types and the weighted index definition
//   - pkg/storage/postgres: connection management and migrations
package search

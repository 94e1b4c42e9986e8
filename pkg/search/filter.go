package search

import (
	"github.com/dealsourcer/orgsearch/pkg/orgs"
)

const (
	// DefaultLimit is the page size when the request does not set one.
	DefaultLimit = 10
	// MaxLimit bounds the page size regardless of what the request asks for.
	MaxLimit = 100
)

// Filter holds the optional search filters for one request. Zero-value
// string fields impose no predicate.
type Filter struct {
	Name         string
	Description  string
	Jurisdiction string
	LegalForm    string
	Status       string

	Limit  int
	Offset int
}

// Normalize applies limit defaulting and clamping and validates offset.
// Returns a ValidationError for values that cannot be repaired.
func (f *Filter) Normalize() error {
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 0 {
		return orgs.NewValidationError("limit", "must be positive")
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		return orgs.NewValidationError("offset", "must be non-negative")
	}
	return nil
}

// HasTextPredicate reports whether the filter triggers full-text matching,
// which switches result ordering to relevance rank.
func (f Filter) HasTextPredicate() bool {
	return f.Name != "" || f.Description != ""
}

package search

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dealsourcer/orgsearch/pkg/observability"
	"github.com/dealsourcer/orgsearch/pkg/orgs"
)

var searchTracer = otel.Tracer("orgsearch/search/service")

// Service executes organization searches against PostgreSQL FTS.
type Service struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewService creates a search service on the given (replica) connection.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// SetMetrics enables Prometheus instrumentation. A nil value is allowed.
func (s *Service) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Response is one page of search results. Total reflects the full filter
// match count, independent of limit and offset.
type Response struct {
	Results []orgs.Summary `json:"results"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// Search runs the page and count queries concurrently and returns the
// ordered page. An offset beyond the match count yields an empty page,
// not an error.
func (s *Service) Search(ctx context.Context, filter Filter) (*Response, error) {
	ctx, span := searchTracer.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.Int("limit", filter.Limit),
			attribute.Int("offset", filter.Offset),
			attribute.Bool("has_text_predicate", filter.HasTextPredicate()),
		),
	)
	defer span.End()

	if err := filter.Normalize(); err != nil {
		span.SetStatus(codes.Error, "invalid filter")
		return nil, err
	}

	start := time.Now()

	var (
		results []orgs.Summary
		total   int
	)

	// Page and count share predicates but not pagination, so they can run
	// concurrently; the group context cancels the sibling on first failure.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		results, err = s.queryPage(gctx, filter)
		return err
	})

	g.Go(func() error {
		query, args := buildCountQuery(filter)
		if err := s.db.QueryRowContext(gctx, query, args...).Scan(&total); err != nil {
			return fmt.Errorf("count query: %w: %v", orgs.ErrBackendUnavailable, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search failed")
		s.metrics.ObserveSearch(filter.HasTextPredicate(), "error", time.Since(start), 0)
		return nil, err
	}

	s.metrics.ObserveSearch(filter.HasTextPredicate(), "success", time.Since(start), len(results))

	span.SetAttributes(
		attribute.Int("result_count", len(results)),
		attribute.Int("total_count", total),
	)
	span.SetStatus(codes.Ok, "search completed")

	return &Response{
		Results: results,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// queryPage executes the ranked page query and maps rows to summaries.
func (s *Service) queryPage(ctx context.Context, filter Filter) ([]orgs.Summary, error) {
	query, args := buildSearchQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("page query: %w: %v", orgs.ErrBackendUnavailable, err)
	}
	defer rows.Close()

	ranked := filter.HasTextPredicate()
	results := make([]orgs.Summary, 0, filter.Limit)
	for rows.Next() {
		var (
			summary      orgs.Summary
			description  sql.NullString
			jurisdiction sql.NullString
			legalForm    sql.NullString
			status       sql.NullString
			rank         float64
		)

		dest := []interface{}{
			&summary.OpenregistersID,
			&summary.Name,
			&description,
			&jurisdiction,
			&legalForm,
			&status,
		}
		if ranked {
			dest = append(dest, &rank)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan result row: %w: %v", orgs.ErrBackendUnavailable, err)
		}

		summary.Description = description.String
		summary.Jurisdiction = jurisdiction.String
		summary.LegalForm = legalForm.String
		summary.Status = status.String
		results = append(results, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w: %v", orgs.ErrBackendUnavailable, err)
	}

	return results, nil
}

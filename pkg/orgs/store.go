package orgs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dealsourcer/orgsearch/pkg/storage/postgres"
)

var storeTracer = otel.Tracer("orgsearch/orgs/store")

// Store provides organization persistence on PostgreSQL. Writes go to the
// writer connection, reads to the reader (a replica when configured). The
// cache is optional; a nil cache disables it.
type Store struct {
	writer *sql.DB
	reader *sql.DB
	cache  *postgres.Cache
}

// NewStore creates a store. reader may equal writer when no replicas exist.
func NewStore(writer, reader *sql.DB, cache *postgres.Cache) *Store {
	if reader == nil {
		reader = writer
	}
	return &Store{writer: writer, reader: reader, cache: cache}
}

// GetOrganization fetches one organization with full nested participations.
// Returns ErrNotFound when no row matches.
func (s *Store) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	ctx, span := storeTracer.Start(ctx, "GetOrganization",
		trace.WithAttributes(attribute.String("openregisters_id", id)),
	)
	defer span.End()

	cacheKey := "org:" + id
	if s.cache != nil {
		if data := s.cache.Get(ctx, cacheKey, postgres.CacheClassOrganization); data != nil {
			var org Organization
			if err := json.Unmarshal(data, &org); err == nil {
				span.SetAttributes(attribute.Bool("cache_hit", true))
				return &org, nil
			}
			s.cache.Invalidate(ctx, cacheKey)
		}
	}

	query := `
		SELECT openregisters_id, name, description, jurisdiction, legal_form,
		       status, participations, created_at, updated_at
		FROM organizations
		WHERE openregisters_id = $1
	`

	var (
		org            Organization
		description    sql.NullString
		jurisdiction   sql.NullString
		legalForm      sql.NullString
		status         sql.NullString
		participations []byte
	)
	err := s.reader.QueryRowContext(ctx, query, id).Scan(
		&org.OpenregistersID,
		&org.Name,
		&description,
		&jurisdiction,
		&legalForm,
		&status,
		&participations,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		span.SetStatus(codes.Ok, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get organization")
		return nil, backendErr("get organization", err)
	}

	org.Description = description.String
	org.Jurisdiction = jurisdiction.String
	org.LegalForm = legalForm.String
	org.Status = status.String
	org.Participations = DecodeParticipations(participations)

	if s.cache != nil {
		if data, err := json.Marshal(&org); err == nil {
			s.cache.Set(ctx, cacheKey, data, postgres.CacheClassOrganization)
		}
	}

	return &org, nil
}

// UpsertOrganization inserts or updates a row, recomputing the weighted
// search vector in the same statement so no read can observe a stale index.
func (s *Store) UpsertOrganization(ctx context.Context, org *Organization) error {
	ctx, span := storeTracer.Start(ctx, "UpsertOrganization",
		trace.WithAttributes(attribute.String("openregisters_id", org.OpenregistersID)),
	)
	defer span.End()

	if org.OpenregistersID == "" {
		return NewValidationError("openregisters_id", "is required")
	}
	if org.Name == "" {
		return NewValidationError("name", "is required")
	}

	participationsJSON, err := json.Marshal(org.Participations)
	if err != nil {
		return fmt.Errorf("failed to marshal participations: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO organizations (
			openregisters_id, name, description, jurisdiction, legal_form,
			status, participations, search_vector, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7::jsonb,
			`+searchVectorExpr+`,
			NOW()
		)
		ON CONFLICT (openregisters_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			jurisdiction = EXCLUDED.jurisdiction,
			legal_form = EXCLUDED.legal_form,
			status = EXCLUDED.status,
			participations = EXCLUDED.participations,
			search_vector = EXCLUDED.search_vector,
			updated_at = NOW()
	`, 2, 3, 8)

	_, err = s.writer.ExecContext(ctx, query,
		org.OpenregistersID,
		org.Name,
		nullString(org.Description),
		nullString(org.Jurisdiction),
		nullString(org.LegalForm),
		nullString(org.Status),
		string(participationsJSON),
		ParticipantText(org.Participations),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert organization")
		return backendErr("upsert organization", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, "org:"+org.OpenregistersID, "stats")
	}

	return nil
}

// Stats returns aggregate counts over the organizations table.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	ctx, span := storeTracer.Start(ctx, "Stats")
	defer span.End()

	if s.cache != nil {
		if data := s.cache.Get(ctx, "stats", postgres.CacheClassStats); data != nil {
			var stats Stats
			if err := json.Unmarshal(data, &stats); err == nil {
				span.SetAttributes(attribute.Bool("cache_hit", true))
				return &stats, nil
			}
		}
	}

	stats := &Stats{}

	err := s.reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM organizations").
		Scan(&stats.TotalOrganizations)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count organizations")
		return nil, backendErr("count organizations", err)
	}

	stats.ByStatus, err = s.groupCounts(ctx, "status", 0)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	stats.TopJurisdictions, err = s.groupCounts(ctx, "jurisdiction", 10)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	stats.TopLegalForms, err = s.groupCounts(ctx, "legal_form", 10)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			s.cache.Set(ctx, "stats", data, postgres.CacheClassStats)
		}
	}

	return stats, nil
}

// groupCounts runs a grouped count over one column, NULL groups excluded,
// largest groups first. A zero limit means no limit. The column name comes
// from a fixed caller-supplied set, never from request input.
func (s *Store) groupCounts(ctx context.Context, column string, limit int) ([]GroupCount, error) {
	query := fmt.Sprintf(`
		SELECT %s, COUNT(*) AS count
		FROM organizations
		WHERE %s IS NOT NULL
		GROUP BY %s
		ORDER BY count DESC
	`, column, column, column)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.reader.QueryContext(ctx, query)
	if err != nil {
		return nil, backendErr("count by "+column, err)
	}
	defer rows.Close()

	var counts []GroupCount
	for rows.Next() {
		var gc GroupCount
		if err := rows.Scan(&gc.Value, &gc.Count); err != nil {
			return nil, backendErr("scan count by "+column, err)
		}
		counts = append(counts, gc)
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr("iterate counts by "+column, err)
	}

	return counts, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

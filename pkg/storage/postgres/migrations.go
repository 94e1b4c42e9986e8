package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order. Each step is
// idempotent (IF NOT EXISTS / OR REPLACE guards) so reapplying after a
// partial failure is safe.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create organizations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					openregisters_id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT,
					jurisdiction TEXT,
					legal_form TEXT,
					status TEXT,
					participations JSONB,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_organizations_jurisdiction ON organizations(jurisdiction);
				CREATE INDEX IF NOT EXISTS idx_organizations_legal_form ON organizations(legal_form);
				CREATE INDEX IF NOT EXISTS idx_organizations_status ON organizations(status);
			`,
		},
		{
			Version:     2,
			Description: "Create weighted full-text search index",
			SQL: `
				ALTER TABLE organizations ADD COLUMN IF NOT EXISTS search_vector TSVECTOR;

				CREATE OR REPLACE FUNCTION org_participants_text(parts JSONB) RETURNS TEXT AS $$
				DECLARE
					result TEXT := '';
					part JSONB;
					person JSONB;
					token TEXT;
					others TEXT;
				BEGIN
					IF parts IS NULL OR jsonb_typeof(parts) <> 'array' THEN
						RETURN '';
					END IF;

					FOR part IN SELECT * FROM jsonb_array_elements(parts) LOOP
						person := part->'name';
						IF person IS NULL OR jsonb_typeof(person) <> 'object' THEN
							CONTINUE;
						END IF;

						token := concat_ws(' ',
							NULLIF(person->>'first_name', ''),
							NULLIF(person->>'last_name', ''));

						IF jsonb_typeof(person->'other_names') = 'array' THEN
							SELECT string_agg(value, ' ')
							INTO others
							FROM jsonb_array_elements_text(person->'other_names')
							WHERE value <> '';
							token := concat_ws(' ', NULLIF(token, ''), NULLIF(others, ''));
						END IF;

						IF token <> '' THEN
							result := concat_ws(' ', NULLIF(result, ''), token);
						END IF;
					END LOOP;

					RETURN result;
				END
				$$ LANGUAGE plpgsql IMMUTABLE;

				CREATE OR REPLACE FUNCTION org_search_vector_update() RETURNS TRIGGER AS $$
				BEGIN
					NEW.search_vector :=
						setweight(to_tsvector('english', coalesce(NEW.name, '')), 'A') ||
						setweight(to_tsvector('english', coalesce(NEW.description, '')), 'B') ||
						setweight(to_tsvector('english', org_participants_text(NEW.participations)), 'C');
					RETURN NEW;
				END
				$$ LANGUAGE plpgsql;

				DROP TRIGGER IF EXISTS trigger_org_search_vector ON organizations;
				CREATE TRIGGER trigger_org_search_vector
					BEFORE INSERT OR UPDATE ON organizations
					FOR EACH ROW
					EXECUTE FUNCTION org_search_vector_update();

				UPDATE organizations SET search_vector =
					setweight(to_tsvector('english', coalesce(name, '')), 'A') ||
					setweight(to_tsvector('english', coalesce(description, '')), 'B') ||
					setweight(to_tsvector('english', org_participants_text(participations)), 'C')
				WHERE search_vector IS NULL;

				CREATE INDEX IF NOT EXISTS idx_organizations_search_vector
					ON organizations USING GIN(search_vector);
			`,
		},
		{
			Version:     3,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					email TEXT PRIMARY KEY,
					first_name TEXT NOT NULL,
					last_name TEXT NOT NULL,
					company TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     4,
			Description: "Create access_credentials table",
			SQL: `
				CREATE TABLE IF NOT EXISTS access_credentials (
					id BIGSERIAL PRIMARY KEY,
					email TEXT NOT NULL,
					code TEXT NOT NULL,
					user_info JSONB NOT NULL DEFAULT '{}',
					expires_at TIMESTAMPTZ NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_access_credentials_email_created
					ON access_credentials(email, created_at DESC);
				CREATE INDEX IF NOT EXISTS idx_access_credentials_expires_at
					ON access_credentials(expires_at);
			`,
		},
		{
			Version:     5,
			Description: "Create api_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					token_hash TEXT PRIMARY KEY,
					token_prefix TEXT NOT NULL,
					email TEXT NOT NULL REFERENCES users(email) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMPTZ
				);

				CREATE INDEX IF NOT EXISTS idx_api_tokens_email ON api_tokens(email);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own
// transaction, tracked in schema_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migration versions: %w", err)
	}

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// Package integration exercises the search, auth and HTTP stacks against
// a real PostgreSQL instance started with testcontainers. These tests are
// skipped in -short mode and when Docker is unavailable; set
// TEST_POSTGRES_URL to run against an existing database instead.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/dealsourcer/orgsearch/pkg/orgs"
	"github.com/dealsourcer/orgsearch/pkg/storage/postgres"
)

// setupDatabase provisions a migrated PostgreSQL database for one test.
// Each test gets its own container (or schemaless reuse of
// TEST_POSTGRES_URL) so state never leaks between tests.
func setupDatabase(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		ctx := context.Background()
		ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("orgsearch"),
			tcpostgres.WithUsername("orgsearch"),
			tcpostgres.WithPassword("orgsearch"),
			tcpostgres.BasicWaitStrategies(),
		)
		testcontainers.CleanupContainer(t, ctr)
		if err != nil {
			t.Skipf("could not start postgres container: %v", err)
		}

		url, err = ctr.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, postgres.RunMigrations(ctx, db))

	// Reused databases carry rows from previous runs.
	_, err = db.ExecContext(ctx, "TRUNCATE organizations, users, access_credentials, api_tokens")
	require.NoError(t, err)

	return db
}

// seedOrganizations inserts n generic organizations with predictable IDs
// (SEED-0001, SEED-0002, ...).
func seedOrganizations(t *testing.T, store *orgs.Store, n int) {
	t.Helper()

	ctx := context.Background()
	for i := 1; i <= n; i++ {
		org := &orgs.Organization{
			OpenregistersID: fmt.Sprintf("SEED-%04d", i),
			Name:            fmt.Sprintf("Seed Company %d", i),
			Jurisdiction:    "de",
			LegalForm:       "GmbH",
			Status:          orgs.StatusActive,
		}
		require.NoError(t, store.UpsertOrganization(ctx, org))
	}
}

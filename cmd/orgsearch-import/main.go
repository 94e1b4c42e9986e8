// Command orgsearch-import bulk-loads organization records from a JSONL
// file (one organization per line) into the database. Records are
// upserted concurrently; lines that fail to decode or persist are
// reported at the end without aborting the run.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/dealsourcer/orgsearch/pkg/async"
	"github.com/dealsourcer/orgsearch/pkg/orgs"
)

var (
	dbURL   = flag.String("db-url", getEnv("ORGSEARCH_POSTGRES_URL", "postgres://localhost/orgsearch?sslmode=disable"), "PostgreSQL connection URL")
	file    = flag.String("file", "-", "Path to JSONL input, or - for stdin")
	workers = flag.Int("workers", 8, "Number of concurrent upsert workers")
	timeout = flag.Duration("timeout", 30*time.Second, "Per-record upsert timeout")
)

func main() {
	flag.Parse()

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	input, err := openInput(*file)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer input.Close()

	records, decodeErrs, err := readRecords(input)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	log.Printf("Read %d records (%d lines skipped)", len(records), len(decodeErrs))

	store := orgs.NewStore(db, db, nil)
	errs := async.Batch(context.Background(), records, *workers, "organization import", *timeout,
		func(ctx context.Context, org *orgs.Organization) error {
			return store.UpsertOrganization(ctx, org)
		})

	for _, err := range decodeErrs {
		log.Printf("Skipped: %v", err)
	}
	for _, err := range errs {
		log.Printf("Upsert failed: %v", err)
	}

	log.Printf("Imported %d of %d records", len(records)-len(errs), len(records))
	if len(errs) > 0 {
		os.Exit(1)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}

// readRecords decodes one organization per line. Malformed lines are
// collected as errors rather than aborting the whole file.
func readRecords(r io.Reader) ([]*orgs.Organization, []error, error) {
	var records []*orgs.Organization
	var decodeErrs []error

	scanner := bufio.NewScanner(r)
	// Register records with large participation lists exceed the
	// default 64KB line limit.
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var org orgs.Organization
		if err := json.Unmarshal(raw, &org); err != nil {
			decodeErrs = append(decodeErrs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if org.OpenregistersID == "" {
			decodeErrs = append(decodeErrs, fmt.Errorf("line %d: missing openregisters_id", line))
			continue
		}
		records = append(records, &org)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return records, decodeErrs, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

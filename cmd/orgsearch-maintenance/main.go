package main

import (
	"context"
	"database/sql"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dealsourcer/orgsearch/pkg/auth"
)

var (
	dbURL           = flag.String("db-url", getEnv("ORGSEARCH_POSTGRES_URL", "postgres://localhost/orgsearch?sslmode=disable"), "PostgreSQL connection URL")
	purgeSchedule   = flag.String("purge-schedule", "0 * * * *", "Cron schedule for purging expired access codes (default: hourly)")
	reindexSchedule = flag.String("reindex-schedule", "*/15 * * * *", "Cron schedule for backfilling missing search vectors (default: every 15 minutes)")
	runOnce         = flag.Bool("run-once", false, "Run all maintenance tasks once and exit")
)

func main() {
	flag.Parse()

	// Connect to database
	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Verify connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	authService := auth.NewService(db, discardMailer{}, discardLogger())

	// Run once mode (for testing or manual cleanup)
	if *runOnce {
		if err := purgeCredentials(authService); err != nil {
			log.Fatalf("Credential purge failed: %v", err)
		}
		if err := backfillSearchVectors(db); err != nil {
			log.Fatalf("Search vector backfill failed: %v", err)
		}
		log.Println("Maintenance completed successfully")
		return
	}

	// Scheduled mode
	c := cron.New()

	_, err = c.AddFunc(*purgeSchedule, func() {
		if err := purgeCredentials(authService); err != nil {
			log.Printf("Credential purge failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule credential purge: %v", err)
	}

	_, err = c.AddFunc(*reindexSchedule, func() {
		if err := backfillSearchVectors(db); err != nil {
			log.Printf("Search vector backfill failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule search vector backfill: %v", err)
	}

	c.Start()
	log.Println("Orgsearch maintenance started")
	log.Printf("Credential purge schedule: %s", *purgeSchedule)
	log.Printf("Search vector backfill schedule: %s", *reindexSchedule)

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down gracefully...")

	ctx := c.Stop()
	<-ctx.Done()

	log.Println("Maintenance stopped")
}

func purgeCredentials(authService *auth.Service) error {
	purged, err := authService.PurgeExpiredCredentials(context.Background())
	if err != nil {
		return err
	}
	log.Printf("Purged %d expired access codes", purged)
	return nil
}

// backfillSearchVectors recomputes search vectors for rows the trigger
// missed, e.g. data loaded before the FTS migration ran.
func backfillSearchVectors(db *sql.DB) error {
	result, err := db.ExecContext(context.Background(),
		`UPDATE organizations SET updated_at = updated_at WHERE search_vector IS NULL`)
	if err != nil {
		return err
	}
	updated, _ := result.RowsAffected()
	if updated > 0 {
		log.Printf("Backfilled search vectors for %d organizations", updated)
	}
	return nil
}

type discardMailer struct{}

func (discardMailer) SendAccessCode(ctx context.Context, email, code string) error { return nil }

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

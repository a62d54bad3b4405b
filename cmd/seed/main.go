// Command seed installs the default detection rules into the database.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./cmd/seed
//
// Seeding is idempotent: rules that already exist (by name) are left alone.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/fraudguard/fraudguard/internal/rules"
)

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	store := rules.NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate rules table: %v", err)
	}

	n, err := rules.Seed(ctx, store)
	if err != nil {
		log.Fatalf("Failed to seed rules: %v", err)
	}
	log.Printf("Seeded %d rules", n)
}

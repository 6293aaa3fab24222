package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/opentrusty/tenantdir/internal/store/postgres"
)

// migrate applies the embedded schema to the database named by the first
// argument or $TENANTDIR_DATABASE_URL.
func main() {
	ctx := context.Background()

	connStr := os.Getenv("TENANTDIR_DATABASE_URL")
	if len(os.Args) > 1 {
		connStr = os.Args[1]
	}
	if connStr == "" {
		fmt.Fprintln(os.Stderr, "usage: migrate <postgres-url>  (or set TENANTDIR_DATABASE_URL)")
		os.Exit(2)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping: %v", err)
	}
	fmt.Println("✓ Connected to database")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Fatalf("Failed to begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, postgres.InitialSchema); err != nil {
		_ = tx.Rollback()
		log.Fatalf("Failed to apply schema: %v", err)
	}
	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	fmt.Println("✓ Schema applied")
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Tables in reverse dependency order.
var tables = []string{
	"user_role_assignments",
	"role_permission_assignments",
	"user_accounts",
	"roles",
	"permissions",
	"tenants",
}

func main() {
	drop := flag.Bool("drop", false, "drop the tables instead of truncating them")
	flag.Parse()

	connStr := os.Getenv("TENANTDIR_DATABASE_URL")
	if flag.NArg() > 0 {
		connStr = flag.Arg(0)
	}
	if connStr == "" {
		fmt.Fprintln(os.Stderr, "usage: clean-db [-drop] <postgres-url>  (or set TENANTDIR_DATABASE_URL)")
		os.Exit(2)
	}

	ctx := context.Background()
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	stmt := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " CASCADE"
	if *drop {
		stmt = "DROP TABLE IF EXISTS " + strings.Join(tables, ", ") + " CASCADE"
	}

	fmt.Println("Cleaning database...")
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		log.Fatalf("Failed to clean: %v", err)
	}
	fmt.Printf("✓ %d tables cleaned\n", len(tables))
}

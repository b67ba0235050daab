// Command migrate applies the SQL files in migrations/ to the intake database.
//
//	migrate [dir]      apply every *.sql file in name order
//	migrate --list     show the intake tables and their row counts
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/jbrand/leadintake/internal/repository/postgres"
)

// intakeTables are the tables owned by the intake migrations.
var intakeTables = []string{"contacts", "subscribers"}

func main() {
	dsn := postgres.BuildDSN(os.Getenv("DATABASE_URL"), os.Getenv("DATABASE_NAME"))
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		switch a {
		case "--list":
			listOnly = true
		default:
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	if listOnly {
		listTables(db)
		return
	}

	files, err := migrationFiles(dir)
	if err != nil {
		log.Fatalf("read migrations dir %s: %v", dir, err)
	}
	applied, failed := 0, 0
	for _, f := range files {
		if err := apply(db, f); err != nil {
			fmt.Printf("  %s ... ERROR: %v\n", filepath.Base(f), err)
			failed++
			continue
		}
		fmt.Printf("  %s ... OK\n", filepath.Base(f))
		applied++
	}
	log.Printf("Migrations done: %d applied, %d failed", applied, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// apply runs one file in its own transaction. Empty files are skipped.
func apply(db *sql.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(string(data)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func listTables(db *sql.DB) {
	for _, t := range intakeTables {
		var rows int64
		if err := db.QueryRow("SELECT COUNT(*) FROM " + t).Scan(&rows); err != nil {
			fmt.Printf("  %-12s missing\n", t)
			continue
		}
		fmt.Printf("  %-12s %d rows\n", t, rows)
	}
}

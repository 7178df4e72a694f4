package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// AppliedMigrations returns the names of migrations already run, in order
func (db *DB) AppliedMigrations() ([]string, error) {
	if _, err := db.Exec(createMigrationsTable); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var names []string
	if err := db.Select(&names, `SELECT name FROM schema_migrations ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	return names, nil
}

// PendingMigrations returns the *.sql files in dir that have not been
// applied yet, sorted by file name
func (db *DB) PendingMigrations(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to find migrations: %w", err)
	}
	sort.Strings(files)

	applied, err := db.AppliedMigrations()
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	var pending []string
	for _, file := range files {
		if !done[filepath.Base(file)] {
			pending = append(pending, file)
		}
	}
	return pending, nil
}

// ApplyMigration runs one migration file and records it, in a single
// transaction
func (db *DB) ApplyMigration(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read migration %s: %w", path, err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", path, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, filepath.Base(path)); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", path, err)
	}
	return tx.Commit()
}

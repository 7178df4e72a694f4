package main

import (
	"log"
	"path/filepath"

	"github.com/petroleumjelliffe/urlnorm/internal/config"
	"github.com/petroleumjelliffe/urlnorm/internal/database"
	"github.com/spf13/pflag"
)

func main() {
	dir := pflag.String("dir", "migrations", "directory holding *.sql migrations")
	status := pflag.Bool("status", false, "list pending migrations without applying them")
	pflag.Parse()

	// Load configuration (supports env vars)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Connecting to database: %s", cfg.Database.DatabaseConnStringSafe())
	db, err := database.NewDB(cfg.Database.DatabaseConnString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	pending, err := db.PendingMigrations(*dir)
	if err != nil {
		log.Fatalf("Failed to list migrations: %v", err)
	}

	if *status {
		for _, migration := range pending {
			log.Printf("[MIGRATE] Pending: %s", filepath.Base(migration))
		}
		log.Printf("[MIGRATE] %d pending migrations", len(pending))
		return
	}

	for _, migration := range pending {
		log.Printf("[MIGRATE] Applying %s", filepath.Base(migration))
		if err := db.ApplyMigration(migration); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	}

	log.Printf("[MIGRATE] %d migrations applied", len(pending))
}

package main

import (
	"log"
	"time"

	"github.com/petroleumjelliffe/urlnorm/internal/config"
	"github.com/petroleumjelliffe/urlnorm/internal/database"
	"github.com/petroleumjelliffe/urlnorm/internal/maintenance"
	"github.com/spf13/pflag"
)

func main() {
	retention := pflag.Int("retention-hours", 0, "override cleanup.retention_hours")
	pflag.Parse()

	// Load configuration (supports env vars)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *retention > 0 {
		cfg.Cleanup.RetentionHours = *retention
	}

	log.Printf("Connecting to database: %s", cfg.Database.DatabaseConnStringSafe())
	db, err := database.NewDB(cfg.Database.DatabaseConnString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("[INFO] Starting link cleanup (retention %dh)...", cfg.Cleanup.RetentionHours)
	startTime := time.Now()

	deleted, err := maintenance.Cleanup(db, maintenance.Config{RetentionHours: cfg.Cleanup.RetentionHours}, startTime)
	if err != nil {
		log.Fatalf("Failed to clean up links: %v", err)
	}

	log.Printf("[INFO] Deleted %d links in %v", deleted, time.Since(startTime))
}

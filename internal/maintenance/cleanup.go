// Package maintenance provides link store cleanup procedures.
package maintenance

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Config holds cleanup configuration
type Config struct {
	RetentionHours     int // How long to keep links nobody has seen again
	CleanupIntervalMin int // How often to run periodic cleanup
}

// LinkPruner deletes links not seen since a cutoff
type LinkPruner interface {
	DeleteLinksSeenBefore(cutoff time.Time) (int64, error)
}

// Cleanup deletes links not seen within the retention period and returns
// how many were removed
func Cleanup(db LinkPruner, config Config, now time.Time) (int64, error) {
	if config.RetentionHours <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %dh", config.RetentionHours)
	}

	cutoff := now.Add(-time.Duration(config.RetentionHours) * time.Hour)
	deleted, err := db.DeleteLinksSeenBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale links: %w", err)
	}
	return deleted, nil
}

// PeriodicCleanup runs one logged cleanup pass
func PeriodicCleanup(db LinkPruner, config Config) error {
	startTime := time.Now()

	deleted, err := Cleanup(db, config, startTime)
	if err != nil {
		return err
	}

	log.Printf("[CLEANUP] Deleted %d links unseen for %dh in %v", deleted, config.RetentionHours, time.Since(startTime))
	return nil
}

// StartCleanupTicker starts a background goroutine that runs periodic
// cleanup until the returned stop function is called. Calling stop more
// than once is a no-op.
func StartCleanupTicker(db LinkPruner, config Config) (stop func()) {
	if config.CleanupIntervalMin <= 0 {
		log.Println("[CLEANUP] Periodic cleanup disabled (interval <= 0)")
		return func() {}
	}

	interval := time.Duration(config.CleanupIntervalMin) * time.Minute
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		log.Printf("[CLEANUP] Started periodic cleanup (interval: %v)", interval)
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := PeriodicCleanup(db, config); err != nil {
					log.Printf("[CLEANUP] Error: %v", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

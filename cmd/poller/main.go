package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/petroleumjelliffe/urlnorm/internal/config"
	"github.com/petroleumjelliffe/urlnorm/internal/database"
	"github.com/petroleumjelliffe/urlnorm/internal/scraper"
)

// Poller scrapes a fixed set of pages and records every link it finds
type Poller struct {
	store         database.LinkStore
	scraper       *scraper.Scraper
	pages         []string
	maxConcurrent int
}

// PollStats summarizes one poll
type PollStats struct {
	Pages    int
	Failed   int
	Links    int
	NewLinks int
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Polling.Pages) == 0 {
		log.Fatalf("No pages configured (polling.pages)")
	}

	normalizer, err := cfg.Normalizer.Build()
	if err != nil {
		log.Fatalf("Failed to build normalizer: %v", err)
	}

	// Initialize database
	log.Printf("Connecting to database: %s", cfg.Database.DatabaseConnStringSafe())
	db, err := database.NewDB(cfg.Database.DatabaseConnString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	s := scraper.NewScraper(normalizer,
		scraper.WithDomainDelay(time.Duration(cfg.Polling.DomainDelayMs)*time.Millisecond),
		scraper.WithRequestsPerSecond(cfg.Polling.RequestsPerSec),
	)
	defer s.Close()

	poller := &Poller{
		store:         db,
		scraper:       s,
		pages:         cfg.Polling.Pages,
		maxConcurrent: cfg.Polling.MaxConcurrent,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("Starting poller for %d pages", len(poller.pages))

	// Run initial poll
	poller.Poll(ctx)

	// Run on schedule
	ticker := time.NewTicker(time.Duration(cfg.Polling.IntervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Shutting down poller")
			return
		case <-ticker.C:
			poller.Poll(ctx)
		}
	}
}

// Poll scrapes every page once, at most maxConcurrent at a time
func (p *Poller) Poll(ctx context.Context) PollStats {
	log.Println("Starting poll...")
	startTime := time.Now()

	maxConcurrent := p.maxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		stats = PollStats{Pages: len(p.pages)}
		sem   = make(chan struct{}, maxConcurrent)
	)

	for _, page := range p.pages {
		wg.Add(1)
		go func(page string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			links, created, err := p.pollPage(ctx, page)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("[ERROR] %s: %v", page, err)
				stats.Failed++
				return
			}
			stats.Links += links
			stats.NewLinks += created
		}(page)
	}

	wg.Wait()

	log.Printf("Poll complete in %v: %d pages (%d failed), %d links, %d new",
		time.Since(startTime), stats.Pages, stats.Failed, stats.Links, stats.NewLinks)
	return stats
}

// pollPage records the links of one page and returns how many were seen
// and how many were new to the store
func (p *Poller) pollPage(ctx context.Context, page string) (int, int, error) {
	links, err := p.scraper.FetchLinks(ctx, page)
	if err != nil {
		return 0, 0, err
	}

	created := 0
	for _, link := range links {
		_, isNew, err := p.store.GetOrCreateLink(link.URL, link.Key)
		if err != nil {
			log.Printf("Error with link %s: %v", link.URL, err)
			continue
		}
		if isNew {
			created++
		}
	}

	log.Printf("[POLL] %s: %d links, %d new", page, len(links), created)
	return len(links), created, nil
}

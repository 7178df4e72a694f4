package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/petroleumjelliffe/urlnorm/internal/database"
	"github.com/petroleumjelliffe/urlnorm/internal/scraper"
	"github.com/petroleumjelliffe/urlnorm/pkg/urlnorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu    sync.Mutex
	links map[string]*database.Link
}

func (m *memoryStore) GetOrCreateLink(originalURL, normalizedURL string) (*database.Link, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.links[normalizedURL]; ok {
		link.SeenCount++
		return link, false, nil
	}
	link := &database.Link{OriginalURL: originalURL, NormalizedURL: normalizedURL, SeenCount: 1}
	m.links[normalizedURL] = link
	return link, true, nil
}

func (m *memoryStore) GetLinkByNormalizedURL(normalizedURL string) (*database.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.links[normalizedURL]; ok {
		return link, nil
	}
	return nil, database.ErrNotFound
}

func (m *memoryStore) GetTopLinks(limit int) ([]database.Link, error) {
	return nil, nil
}

func TestPoll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/one", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="https://www.example.com/story.html">s</a><a href="https://example.org/x">x</a>`)
	})
	mux.HandleFunc("/two", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="https://example.com/story/?utm_source=two">s</a><a href="https://example.net/y">y</a>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	n := urlnorm.Default()
	store := &memoryStore{links: make(map[string]*database.Link)}
	s := scraper.NewScraper(n, scraper.WithDomainDelay(0), scraper.WithRetries(0, time.Millisecond))
	defer s.Close()

	p := &Poller{
		store:         store,
		scraper:       s,
		pages:         []string{srv.URL + "/one", srv.URL + "/two", srv.URL + "/broken"},
		maxConcurrent: 2,
	}

	stats := p.Poll(context.Background())
	assert.Equal(t, PollStats{Pages: 3, Failed: 1, Links: 4, NewLinks: 3}, stats)

	link, err := store.GetLinkByNormalizedURL("example.com:story:")
	require.NoError(t, err)
	assert.Equal(t, 2, link.SeenCount)

	// A second poll finds nothing new
	stats = p.Poll(context.Background())
	assert.Equal(t, 0, stats.NewLinks)
}

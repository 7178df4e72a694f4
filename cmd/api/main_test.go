package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/petroleumjelliffe/urlnorm/internal/config"
	"github.com/petroleumjelliffe/urlnorm/internal/database"
	"github.com/petroleumjelliffe/urlnorm/pkg/urlnorm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu    sync.Mutex
	links map[string]*database.Link
	fail  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{links: make(map[string]*database.Link)}
}

func (m *memoryStore) GetOrCreateLink(originalURL, normalizedURL string) (*database.Link, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, false, m.fail
	}
	if link, ok := m.links[normalizedURL]; ok {
		link.SeenCount++
		return link, false, nil
	}
	link := &database.Link{ID: len(m.links) + 1, OriginalURL: originalURL, NormalizedURL: normalizedURL, SeenCount: 1}
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
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	var out []database.Link
	for _, link := range m.links {
		out = append(out, *link)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestServer(store database.LinkStore) *Server {
	cfg := &config.Config{Server: config.ServerConfig{CORSAllowOrigin: "*", RateLimitRPM: 1000}}
	return NewServer(cfg, store, urlnorm.Default())
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(newMemoryStore()), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestNormalize(t *testing.T) {
	s := newTestServer(newMemoryStore())

	rec := do(t, s, http.MethodGet, "/api/normalize?url="+url.QueryEscape("http://www.example.com/a.html?utm_source=x"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp NormalizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "example.com:a:", resp.NormalizedURL)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/normalize", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/normalize?url=http://", "").Code)
}

func TestCompare(t *testing.T) {
	s := newTestServer(newMemoryStore())

	tests := []struct {
		a, b string
		same bool
	}{
		{"http://www.example.com", "https://example.com", true},
		{"https://google.com/?page=1", "https://google.com/?page=2", false},
		{"http://x.com#something", "http://x.com", true},
		{"mailto:someone@example.com", "http://example.com", false},
	}

	for _, tt := range tests {
		target := "/api/compare?a=" + url.QueryEscape(tt.a) + "&b=" + url.QueryEscape(tt.b)
		rec := do(t, s, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp CompareResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tt.same, resp.Same, "%s vs %s", tt.a, tt.b)
	}

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/compare?a=http://x.com", "").Code)
}

func TestCreateLink(t *testing.T) {
	store := newMemoryStore()
	s := newTestServer(store)

	rec := do(t, s, http.MethodPost, "/api/links", `{"url":"http://www.example.com/story.html"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp LinkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Created)
	assert.Equal(t, "example.com:story:", resp.Link.NormalizedURL)

	rec = do(t, s, http.MethodPost, "/api/links", `{"url":"https://example.com/story/?utm_campaign=x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Created)
	assert.Equal(t, 2, resp.Link.SeenCount)
	assert.Equal(t, "http://www.example.com/story.html", resp.Link.OriginalURL)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/links", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/links", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/links", `{"url":"http://"}`).Code)
}

func TestCreateLinkStoreError(t *testing.T) {
	store := newMemoryStore()
	store.fail = errors.New("db down")
	s := newTestServer(store)

	rec := do(t, s, http.MethodPost, "/api/links", `{"url":"http://example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTopLinks(t *testing.T) {
	store := newMemoryStore()
	s := newTestServer(store)

	rec := do(t, s, http.MethodGet, "/api/links/top", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"links":[]}`, rec.Body.String())

	do(t, s, http.MethodPost, "/api/links", `{"url":"http://example.com/a"}`)
	rec = do(t, s, http.MethodGet, "/api/links/top?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TopResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Links, 1)
	assert.Equal(t, "example.com:a:", resp.Links[0].NormalizedURL)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/links/top?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/links/top?limit=abc", "").Code)
}

func TestRateLimit(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{CORSAllowOrigin: "*", RateLimitRPM: 2}}
	s := NewServer(cfg, newMemoryStore(), urlnorm.Default())

	target := "/api/normalize?url=http://example.com"
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, target, "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, target, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, s, http.MethodGet, target, "").Code)

	// Health checks are never limited
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	rec := do(t, newTestServer(newMemoryStore()), http.MethodOptions, "/api/links", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/petroleumjelliffe/urlnorm/internal/config"
	"github.com/petroleumjelliffe/urlnorm/internal/database"
	"github.com/petroleumjelliffe/urlnorm/internal/maintenance"
	"github.com/petroleumjelliffe/urlnorm/internal/urlutil"
	"github.com/petroleumjelliffe/urlnorm/pkg/urlnorm"
)

// maxRequestBody bounds POST bodies; a URL never needs more
const maxRequestBody = 64 * 1024

// Server wraps the HTTP server
type Server struct {
	store      database.LinkStore
	normalizer *urlnorm.Normalizer
	router     *chi.Mux
	config     *config.Config
}

// NormalizeResponse is the API response for /api/normalize
type NormalizeResponse struct {
	URL           string `json:"url"`
	NormalizedURL string `json:"normalized_url"`
}

// CompareResponse is the API response for /api/compare
type CompareResponse struct {
	A    string `json:"a"`
	B    string `json:"b"`
	Same bool   `json:"same"`
}

// LinkRequest is the body of POST /api/links
type LinkRequest struct {
	URL string `json:"url"`
}

// LinkResponse is a stored link in the API response
type LinkResponse struct {
	Link    *database.Link `json:"link"`
	Created bool           `json:"created"`
}

// TopResponse is the API response for /api/links/top
type TopResponse struct {
	Links []database.Link `json:"links"`
}

func main() {
	// Load configuration (supports env vars)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	normalizer, err := cfg.Normalizer.Build()
	if err != nil {
		log.Fatalf("Failed to build normalizer: %v", err)
	}

	// Initialize database (log safe connection string without password)
	log.Printf("Connecting to database: %s", cfg.Database.DatabaseConnStringSafe())
	db, err := database.NewDB(cfg.Database.DatabaseConnString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	stopCleanup := maintenance.StartCleanupTicker(db, maintenance.Config{
		RetentionHours:     cfg.Cleanup.RetentionHours,
		CleanupIntervalMin: cfg.Cleanup.CleanupIntervalMin,
	})
	defer stopCleanup()

	server := NewServer(cfg, db, normalizer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start server with or without TLS
	if cfg.Server.IsTLSEnabled() {
		log.Printf("[API] Starting HTTPS server on %s", addr)
		if err := http.ListenAndServeTLS(addr, cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile, server.router); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	} else {
		log.Printf("[API] Starting HTTP server on %s (TLS not configured)", addr)
		if err := http.ListenAndServe(addr, server.router); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}
}

// NewServer wires the routes for the given store and normalizer
func NewServer(cfg *config.Config, store database.LinkStore, normalizer *urlnorm.Normalizer) *Server {
	s := &Server{
		store:      store,
		normalizer: normalizer,
		router:     chi.NewRouter(),
		config:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Middleware stack (order matters)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// Security middleware
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.rateLimitMiddleware)

	// Routes
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/normalize", s.handleNormalize)
	s.router.Get("/api/compare", s.handleCompare)
	s.router.Post("/api/links", s.handleCreateLink)
	s.router.Get("/api/links/top", s.handleTopLinks)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		http.Error(w, "Missing url parameter", http.StatusBadRequest)
		return
	}

	normalized, err := urlutil.Normalize(s.normalizer, rawURL)
	if err != nil {
		http.Error(w, "Invalid url parameter", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, NormalizeResponse{URL: rawURL, NormalizedURL: normalized})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	if a == "" || b == "" {
		http.Error(w, "Missing a or b parameter", http.StatusBadRequest)
		return
	}

	same, err := urlutil.Same(s.normalizer, a, b)
	if err != nil {
		http.Error(w, "Invalid a or b parameter", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, CompareResponse{A: a, B: b, Same: same})
}

func (s *Server) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	normalized, err := urlutil.Normalize(s.normalizer, req.URL)
	if err != nil {
		http.Error(w, "Invalid url", http.StatusBadRequest)
		return
	}

	link, created, err := s.store.GetOrCreateLink(req.URL, normalized)
	if err != nil {
		log.Printf("[API] Error storing link %s: %v", req.URL, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, LinkResponse{Link: link, Created: created})
}

func (s *Server) handleTopLinks(w http.ResponseWriter, r *http.Request) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		limitStr = "50"
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 || limit > 100 {
		http.Error(w, "Invalid limit parameter (1-100)", http.StatusBadRequest)
		return
	}

	links, err := s.store.GetTopLinks(limit)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		log.Printf("[API] Error getting top links: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if links == nil {
		links = []database.Link{}
	}

	writeJSON(w, http.StatusOK, TopResponse{Links: links})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Error encoding response: %v", err)
	}
}

// securityHeadersMiddleware adds security headers to all responses
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// Referrer policy
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// HSTS (only if TLS is enabled)
		if s.config.Server.IsTLSEnabled() {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS with configurable allowed origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.config.Server.CORSAllowOrigin

		// If specific origin is configured, validate it
		if origin != "*" {
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin != "" && requestOrigin != origin {
				// Origin not allowed - don't set CORS headers
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware implements simple IP-based rate limiting
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	type visitor struct {
		count    int
		lastSeen time.Time
	}

	var (
		visitors = make(map[string]*visitor)
		mu       sync.Mutex
	)

	limitPerMinute := s.config.Server.RateLimitRPM
	if limitPerMinute == 0 {
		limitPerMinute = 100 // Default
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip rate limiting for health checks
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		// RealIP middleware has already applied X-Forwarded-For
		ip := r.RemoteAddr

		mu.Lock()
		now := time.Now()
		// Forget visitors idle for over a minute
		for addr, v := range visitors {
			if now.Sub(v.lastSeen) > time.Minute {
				delete(visitors, addr)
			}
		}

		v, exists := visitors[ip]
		if !exists {
			v = &visitor{}
			visitors[ip] = v
		}
		v.count++
		v.lastSeen = now
		over := v.count > limitPerMinute
		mu.Unlock()

		if over {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

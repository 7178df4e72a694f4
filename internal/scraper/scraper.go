package scraper

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/petroleumjelliffe/urlnorm/internal/urlutil"
	"github.com/petroleumjelliffe/urlnorm/pkg/urlnorm"
)

// Link is an outbound link with the normalization key it was deduplicated by
type Link struct {
	URL string
	Key string
}

// Scraper fetches pages and returns their outbound links with duplicates
// removed by normalization string
type Scraper struct {
	client      *http.Client
	normalizer  *urlnorm.Normalizer
	rateLimiter *DomainRateLimiter
	throttle    *RateLimiter
	maxBodySize int64
	maxRetries  int
	backoff     time.Duration
}

// Option customizes a Scraper
type Option func(*Scraper)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scraper) { s.client = c }
}

// WithDomainDelay sets the minimum delay between requests to one domain
func WithDomainDelay(d time.Duration) Option {
	return func(s *Scraper) { s.rateLimiter = NewDomainRateLimiter(d) }
}

// WithRequestsPerSecond caps the total request rate across all domains
func WithRequestsPerSecond(rps int) Option {
	return func(s *Scraper) {
		if rps > 0 {
			s.throttle = NewRateLimiter(rps)
		}
	}
}

// WithRetries sets how often transient failures are retried and the
// initial backoff between attempts
func WithRetries(n int, backoff time.Duration) Option {
	return func(s *Scraper) {
		s.maxRetries = n
		s.backoff = backoff
	}
}

// NewScraper creates a new scraper
func NewScraper(n *urlnorm.Normalizer, opts ...Option) *Scraper {
	if n == nil {
		n = urlnorm.Default()
	}

	s := &Scraper{
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
			},
		},
		normalizer:  n,
		rateLimiter: NewDomainRateLimiter(1 * time.Second), // 1 req/sec per domain
		maxBodySize: 1024 * 1024,                           // 1MB limit
		maxRetries:  2,                                     // Retry transient errors twice
		backoff:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the global rate limiter, if any
func (s *Scraper) Close() {
	if s.throttle != nil {
		s.throttle.Close()
	}
}

// FetchLinks fetches pageURL and returns the distinct links it contains
func (s *Scraper) FetchLinks(ctx context.Context, pageURL string) ([]Link, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", pageURL)
	}

	if s.throttle != nil {
		if err := s.throttle.Wait(ctx); err != nil {
			return nil, err
		}
	}

	// Rate limit per domain
	if err := s.rateLimiter.Wait(ctx, base.Host); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		links, err := s.fetchOnce(ctx, base)
		if err == nil {
			return links, nil
		}

		lastErr = err

		// Check if error is retryable
		if !isRetryableError(err) {
			return nil, err
		}

		// Don't sleep after last attempt
		if attempt < s.maxRetries {
			delay := s.backoff * time.Duration(1<<attempt) // Exponential: 500ms, 1s
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", s.maxRetries, lastErr)
}

// ExtractLinks returns the http(s) links of an HTML document, resolved
// against base, keeping the first URL of each normalization string
func (s *Scraper) ExtractLinks(r io.Reader, base *url.URL) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	// A <base href> overrides the page URL for relative links
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	seen := make(map[string]bool)
	var links []Link

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}

		abs := ref.String()
		key, err := urlutil.Normalize(s.normalizer, abs)
		if err != nil || seen[key] {
			return
		}
		seen[key] = true
		links = append(links, Link{URL: abs, Key: key})
	})

	return links, nil
}

// fetchOnce performs the actual HTTP request
func (s *Scraper) fetchOnce(ctx context.Context, base *url.URL) ([]Link, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, err
	}

	// Set browser-like headers
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; urlnorm-scraper/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code: %d", resp.StatusCode)
	}

	// Limit body size to prevent reading huge files
	return s.ExtractLinks(io.LimitReader(resp.Body, s.maxBodySize), resp.Request.URL)
}

// isRetryableError determines if an error should be retried
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Retry transient errors
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "502") {
		return true
	}

	// Default: don't retry permanent (4xx) or unknown errors
	return false
}

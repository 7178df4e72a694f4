package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/goware/urlx"
	"github.com/petroleumjelliffe/urlnorm/pkg/urlnorm"
)

// URL pattern to extract URLs from text
var urlPattern = regexp.MustCompile(`https?://[^\s<>'"]+`)

// ExtractURLs finds all URLs in a text string
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)

	// Clean up URLs (remove trailing punctuation, etc.)
	var urls []string
	for _, match := range matches {
		cleaned := strings.TrimRight(match, ".,;:!?)")
		urls = append(urls, cleaned)
	}

	return urls
}

// Parse parses a raw URL for normalization. Web URLs and scheme-less input
// such as "example.com/page" go through urlx, which defaults the scheme to
// http and rejects URLs without a valid host. Other schemes (mailto:, tel:,
// ftp://) are parsed as-is so they never pick up a host they do not have.
func Parse(rawURL string) (urlnorm.URL, error) {
	raw := strings.TrimSpace(rawURL)

	if u, err := url.Parse(raw); err == nil && hasOwnScheme(u) && u.Scheme != "http" && u.Scheme != "https" {
		return urlnorm.FromURL(u), nil
	}

	parsed, err := urlx.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	return urlnorm.FromURL(parsed), nil
}

// hasOwnScheme reports whether u carries a real scheme rather than a
// host:port that net/url read as one, as in "example.com:8080/a" or
// "localhost:3000".
func hasOwnScheme(u *url.URL) bool {
	if u.Scheme == "" || u.Scheme == "localhost" || strings.Contains(u.Scheme, ".") {
		return false
	}
	if u.Opaque == "" {
		return true
	}
	port, _, _ := strings.Cut(u.Opaque, "/")
	return !isPort(port)
}

func isPort(s string) bool {
	if s == "" || len(s) > 5 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Normalize returns the normalization string of a raw URL, the key under
// which duplicates collapse.
func Normalize(n *urlnorm.Normalizer, rawURL string) (string, error) {
	u, err := Parse(rawURL)
	if err != nil {
		return "", err
	}
	return n.ComputeNormalizationString(u), nil
}

// Same reports whether two raw URLs normalize to the same resource.
func Same(n *urlnorm.Normalizer, a, b string) (bool, error) {
	ua, err := Parse(a)
	if err != nil {
		return false, err
	}
	ub, err := Parse(b)
	if err != nil {
		return false, err
	}
	return n.AreSame(ua, ub), nil
}

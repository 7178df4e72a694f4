package aggregator

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/petroleumjelliffe/urlnorm/internal/urlutil"
	"github.com/petroleumjelliffe/urlnorm/pkg/urlnorm"
)

// Cluster groups every raw URL that normalized to the same key
type Cluster struct {
	Key         string
	FirstURL    string
	URLs        []string
	Sources     []string
	Count       int
	FirstSeenAt time.Time
	LastSeenAt  time.Time

	order int
}

// RankingStrategy defines how clusters should be ranked
type RankingStrategy interface {
	Rank(clusters []Cluster) []Cluster
}

// ShareCountRanking ranks clusters by how often they were seen (default)
type ShareCountRanking struct{}

// Rank sorts clusters by count, then by first appearance
func (r *ShareCountRanking) Rank(clusters []Cluster) []Cluster {
	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].Count != clusters[j].Count {
			return clusters[i].Count > clusters[j].Count
		}
		return clusters[i].order < clusters[j].order
	})
	return clusters
}

// RecencyRanking ranks the most recently seen clusters first
type RecencyRanking struct{}

func (r *RecencyRanking) Rank(clusters []Cluster) []Cluster {
	sort.SliceStable(clusters, func(i, j int) bool {
		if !clusters[i].LastSeenAt.Equal(clusters[j].LastSeenAt) {
			return clusters[i].LastSeenAt.After(clusters[j].LastSeenAt)
		}
		return clusters[i].order < clusters[j].order
	})
	return clusters
}

// Aggregator deduplicates URLs from any number of sources in memory.
// It is safe for concurrent use.
type Aggregator struct {
	normalizer *urlnorm.Normalizer
	ranker     RankingStrategy
	now        func() time.Time

	mu       sync.Mutex
	clusters map[string]*Cluster
}

// NewAggregator creates a new aggregator with the given ranking strategy
func NewAggregator(n *urlnorm.Normalizer, ranker RankingStrategy) *Aggregator {
	if n == nil {
		n = urlnorm.Default()
	}
	if ranker == nil {
		ranker = &ShareCountRanking{} // Default
	}

	return &Aggregator{
		normalizer: n,
		ranker:     ranker,
		now:        time.Now,
		clusters:   make(map[string]*Cluster),
	}
}

// Add records rawURL as seen from source. It returns a snapshot of the
// cluster the URL joined and whether that cluster is new.
func (a *Aggregator) Add(rawURL, source string) (Cluster, bool, error) {
	key, err := urlutil.Normalize(a.normalizer, rawURL)
	if err != nil {
		return Cluster{}, false, err
	}

	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	c, exists := a.clusters[key]
	if !exists {
		c = &Cluster{
			Key:         key,
			FirstURL:    rawURL,
			FirstSeenAt: now,
			order:       len(a.clusters),
		}
		a.clusters[key] = c
	}

	c.Count++
	c.LastSeenAt = now
	if !slices.Contains(c.URLs, rawURL) {
		c.URLs = append(c.URLs, rawURL)
	}
	if source != "" && !slices.Contains(c.Sources, source) {
		c.Sources = append(c.Sources, source)
	}

	return c.snapshot(), !exists, nil
}

// Clusters returns a ranked snapshot of all clusters
func (a *Aggregator) Clusters() []Cluster {
	a.mu.Lock()
	out := make([]Cluster, 0, len(a.clusters))
	for _, c := range a.clusters {
		out = append(out, c.snapshot())
	}
	a.mu.Unlock()

	// Start from insertion order so ranking ties are deterministic
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return a.ranker.Rank(out)
}

// Len returns the number of distinct clusters
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.clusters)
}

func (c *Cluster) snapshot() Cluster {
	s := *c
	s.URLs = append([]string(nil), c.URLs...)
	s.Sources = append([]string(nil), c.Sources...)
	return s
}

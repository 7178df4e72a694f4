package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when no link has the requested normalized URL
var ErrNotFound = errors.New("link not found")

// DB wraps the database connection
type DB struct {
	*sqlx.DB
}

// Link is a deduplicated URL. NormalizedURL holds the normalization string
// every equivalent URL maps to; OriginalURL is the first form seen.
type Link struct {
	ID            int       `db:"id" json:"id"`
	OriginalURL   string    `db:"original_url" json:"original_url"`
	NormalizedURL string    `db:"normalized_url" json:"normalized_url"`
	FirstSeenAt   time.Time `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt    time.Time `db:"last_seen_at" json:"last_seen_at"`
	SeenCount     int       `db:"seen_count" json:"seen_count"`
}

// LinkStore is the subset of DB the API and CLI depend on
type LinkStore interface {
	GetOrCreateLink(originalURL, normalizedURL string) (*Link, bool, error)
	GetLinkByNormalizedURL(normalizedURL string) (*Link, error)
	GetTopLinks(limit int) ([]Link, error)
}

var _ LinkStore = (*DB)(nil)

// NewDB creates a new database connection
func NewDB(connectionString string) (*DB, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// GetOrCreateLink records a sighting of normalizedURL. It returns the stored
// link and true if this was the first sighting.
func (db *DB) GetOrCreateLink(originalURL, normalizedURL string) (*Link, bool, error) {
	link := &Link{}

	// Bump an existing row first
	query := `
		UPDATE links
		SET seen_count = seen_count + 1, last_seen_at = NOW()
		WHERE normalized_url = $1
		RETURNING *
	`
	err := db.Get(link, query, normalizedURL)
	if err == nil {
		return link, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	// Create new. A concurrent insert of the same key turns into a bump.
	query = `
		INSERT INTO links (original_url, normalized_url)
		VALUES ($1, $2)
		ON CONFLICT (normalized_url)
		DO UPDATE SET seen_count = links.seen_count + 1, last_seen_at = NOW()
		RETURNING *, (xmax = 0) AS inserted
	`
	var row struct {
		Link
		Inserted bool `db:"inserted"`
	}
	if err := db.Get(&row, query, originalURL, normalizedURL); err != nil {
		return nil, false, err
	}

	*link = row.Link
	return link, row.Inserted, nil
}

// GetLinkByNormalizedURL looks up a link by its normalization string
func (db *DB) GetLinkByNormalizedURL(normalizedURL string) (*Link, error) {
	link := &Link{}
	query := `SELECT * FROM links WHERE normalized_url = $1`
	err := db.Get(link, query, normalizedURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

// GetTopLinks returns the most frequently seen links
func (db *DB) GetTopLinks(limit int) ([]Link, error) {
	query := `
		SELECT * FROM links
		ORDER BY seen_count DESC, last_seen_at DESC
		LIMIT $1
	`

	var links []Link
	err := db.Select(&links, query, limit)
	return links, err
}

// DeleteLinksSeenBefore removes links not seen since cutoff
func (db *DB) DeleteLinksSeenBefore(cutoff time.Time) (int64, error) {
	result, err := db.Exec(`DELETE FROM links WHERE last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

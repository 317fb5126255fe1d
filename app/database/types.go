package database

import (
	"errors"
	"time"
)

var ErrFeedNotFound = errors.New("feed not found")

// FeedSummary is a stored feed without its entries.
type FeedSummary struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Updated    time.Time `json:"updated"`
	EntryCount int       `json:"entry_count"`
	ImportedAt time.Time `json:"imported_at"`
}

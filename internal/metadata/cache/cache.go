// Package cache provides local persistence for TMDB movie details.
package cache

import (
	"context"

	"github.com/marco/myflix/internal/metadata"
)

// Store defines the interface for the movie detail cache.
// Entries never expire; they are written once on the first successful fetch.
type Store interface {
	// GetAll returns every cached movie ordered by id.
	GetAll(ctx context.Context) ([]metadata.Movie, error)

	// GetDetail returns the cached entries for id. An empty slice is a miss.
	GetDetail(ctx context.Context, id int) ([]metadata.Movie, error)

	// InsertDetail inserts movies. Inserting an id that is already cached fails.
	InsertDetail(ctx context.Context, movies ...metadata.Movie) error

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error

	// Close closes the cache and releases resources.
	Close() error
}

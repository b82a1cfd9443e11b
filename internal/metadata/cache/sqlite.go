package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marco/myflix/internal/metadata"
)

// SQLiteStore implements the Store interface using SQLite for persistence.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
// The database file and table are auto-created if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY out of concurrent inserts.
	db.SetMaxOpenConns(1)

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS movies (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			overview TEXT NOT NULL,
			release_date TEXT NOT NULL,
			poster_path TEXT NOT NULL,
			cached_at DATETIME NOT NULL
		);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create movies table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]metadata.Movie, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movies []metadata.Movie
	for rows.Next() {
		var m metadata.Movie
		if err := rows.Scan(&m.ID, &m.Title, &m.Overview, &m.ReleaseDate, &m.PosterPath); err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

// GetAll returns every cached movie ordered by id.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]metadata.Movie, error) {
	movies, err := s.query(ctx,
		"SELECT id, title, overview, release_date, poster_path FROM movies ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list cached movies: %w", err)
	}
	return movies, nil
}

// GetDetail returns the cached entries for id.
func (s *SQLiteStore) GetDetail(ctx context.Context, id int) ([]metadata.Movie, error) {
	movies, err := s.query(ctx,
		"SELECT id, title, overview, release_date, poster_path FROM movies WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached movie %d: %w", id, err)
	}
	return movies, nil
}

// InsertDetail inserts movies in a single transaction.
func (s *SQLiteStore) InsertDetail(ctx context.Context, movies ...metadata.Movie) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, m := range movies {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO movies (id, title, overview, release_date, poster_path, cached_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, m.Title, m.Overview, m.ReleaseDate, m.PosterPath, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert movie %d: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}
	return nil
}

// Clear removes all entries from the cache.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM movies"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

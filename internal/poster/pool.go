// Package poster downloads movie posters concurrently.
package poster

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"github.com/marco/myflix/internal/metadata"
)

// Downloader fetches one poster to a local file and returns its size.
type Downloader interface {
	DownloadPoster(ctx context.Context, posterPath string, outputPath string) (int64, error)
}

// Result holds the outcome of downloading a single poster.
type Result struct {
	Movie metadata.Movie
	Path  string
	Bytes int64
	Err   error
}

// PathGuard provides thread-safe output path deduplication. Only the first
// caller for a given path succeeds.
type PathGuard struct {
	mu    sync.Mutex
	paths map[string]bool
}

// NewPathGuard creates a new PathGuard.
func NewPathGuard() *PathGuard {
	return &PathGuard{paths: make(map[string]bool)}
}

// TryClaim returns true if path was claimed by this caller.
func (g *PathGuard) TryClaim(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paths[path] {
		return false
	}
	g.paths[path] = true
	return true
}

// FileName returns the poster file name for a movie.
func FileName(m metadata.Movie) string {
	ext := filepath.Ext(m.PosterPath)
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("%d%s", m.ID, strings.ToLower(ext))
}

// DownloadAll fans poster downloads for movies out across N workers into
// dir. Movies without a poster, or whose target file was already claimed,
// are reported with an error. The processed pointer, when non-nil, is
// incremented after each movie. Results are returned in no guaranteed order.
func DownloadAll(
	ctx context.Context,
	d Downloader,
	movies []metadata.Movie,
	dir string,
	workers int,
	processed *int64,
) []Result {
	if workers <= 0 {
		workers = 1
	}
	if processed == nil {
		processed = new(int64)
	}

	jobs := make(chan metadata.Movie, len(movies))
	results := make(chan Result, len(movies))
	guard := NewPathGuard()

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for movie := range jobs {
				results <- download(ctx, d, guard, movie, dir)
				atomic.AddInt64(processed, 1)
			}
		}()
	}

	for _, movie := range movies {
		jobs <- movie
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var out []Result
	var total int64
	for r := range results {
		total += r.Bytes
		out = append(out, r)
	}
	slog.Info("poster downloads finished",
		"count", len(out),
		"total", humanize.Bytes(uint64(total)),
	)
	return out
}

func download(ctx context.Context, d Downloader, guard *PathGuard, movie metadata.Movie, dir string) Result {
	r := Result{Movie: movie}
	if err := ctx.Err(); err != nil {
		r.Err = err
		return r
	}
	if movie.PosterPath == "" {
		r.Err = fmt.Errorf("movie %d has no poster", movie.ID)
		return r
	}

	r.Path = filepath.Join(dir, FileName(movie))
	if !guard.TryClaim(r.Path) {
		r.Err = fmt.Errorf("poster %s already claimed", r.Path)
		return r
	}

	n, err := d.DownloadPoster(ctx, movie.PosterPath, r.Path)
	if err != nil {
		slog.Warn("failed to download poster", "movie_id", movie.ID, "error", err)
		r.Err = err
		return r
	}
	r.Bytes = n
	slog.Debug("downloaded poster",
		"movie_id", movie.ID,
		"path", r.Path,
		"size", humanize.Bytes(uint64(n)),
	)
	return r
}

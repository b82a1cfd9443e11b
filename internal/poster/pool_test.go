package poster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marco/myflix/internal/metadata"
)

type fakeDownloader struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]bool
	delay time.Duration
}

func (f *fakeDownloader) DownloadPoster(ctx context.Context, posterPath, outputPath string) (int64, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if f.fail[posterPath] {
		return 0, fmt.Errorf("TMDB API error (status 404): not found")
	}
	f.mu.Lock()
	f.paths = append(f.paths, outputPath)
	f.mu.Unlock()
	return 2048, nil
}

func TestPathGuard_ConcurrentAccess(t *testing.T) {
	g := NewPathGuard()
	path := "/tmp/posters/550.jpg"

	const goroutines = 100
	var successes int64
	var wg sync.WaitGroup

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			if g.TryClaim(path) {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 successful claim, got %d", successes)
	}
}

func TestFileName(t *testing.T) {
	testCases := []struct {
		movie metadata.Movie
		want  string
	}{
		{metadata.Movie{ID: 550, PosterPath: "/abc.jpg"}, "550.jpg"},
		{metadata.Movie{ID: 1, PosterPath: "/abc.PNG"}, "1.png"},
		{metadata.Movie{ID: 2, PosterPath: "/noext"}, "2.jpg"},
	}
	for _, tc := range testCases {
		if got := FileName(tc.movie); got != tc.want {
			t.Errorf("FileName(%+v) = %q, want %q", tc.movie, got, tc.want)
		}
	}
}

func TestDownloadAll_BasicProcessing(t *testing.T) {
	movies := []metadata.Movie{
		{ID: 1, PosterPath: "/one.jpg"},
		{ID: 2, PosterPath: "/two.jpg"},
		{ID: 3, PosterPath: "/three.jpg"},
	}
	d := &fakeDownloader{}
	var processed int64

	results := DownloadAll(context.Background(), d, movies, "/posters", 2, &processed)

	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
	if processed != 3 {
		t.Errorf("expected processed=3, got %d", processed)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("unexpected error for movie %d: %v", r.Movie.ID, r.Err)
		}
		if r.Bytes != 2048 {
			t.Errorf("expected 2048 bytes, got %d", r.Bytes)
		}
	}
	if len(d.paths) != 3 {
		t.Errorf("expected 3 downloads, got %d", len(d.paths))
	}
}

func TestDownloadAll_HandlesErrors(t *testing.T) {
	movies := []metadata.Movie{
		{ID: 1, PosterPath: "/good.jpg"},
		{ID: 2, PosterPath: "/bad.jpg"},
		{ID: 3},
		{ID: 1, PosterPath: "/good.jpg"},
	}
	d := &fakeDownloader{fail: map[string]bool{"/bad.jpg": true}}

	results := DownloadAll(context.Background(), d, movies, "/posters", 2, nil)

	var errCount, okCount int
	for _, r := range results {
		if r.Err != nil {
			errCount++
		} else {
			okCount++
		}
	}
	if errCount != 3 || okCount != 1 {
		t.Errorf("expected 3 errors and 1 success, got %d errors and %d successes", errCount, okCount)
	}
}

func TestDownloadAll_ContextCancellation(t *testing.T) {
	movies := make([]metadata.Movie, 20)
	for i := range movies {
		movies[i] = metadata.Movie{ID: i + 1, PosterPath: fmt.Sprintf("/%d.jpg", i)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := DownloadAll(ctx, &fakeDownloader{delay: 50 * time.Millisecond}, movies, "/posters", 2, nil)

	if len(results) != 20 {
		t.Errorf("expected 20 results, got %d", len(results))
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("expected canceled result for movie %d, got %v", r.Movie.ID, r.Err)
		}
	}
}

func TestDownloadAll_EmptyInputAndZeroWorkers(t *testing.T) {
	if results := DownloadAll(context.Background(), &fakeDownloader{}, nil, "/posters", 0, nil); len(results) != 0 {
		t.Errorf("expected 0 results for nil input, got %d", len(results))
	}

	results := DownloadAll(context.Background(), &fakeDownloader{}, []metadata.Movie{{ID: 1, PosterPath: "/a.jpg"}}, "/posters", 0, nil)
	if len(results) != 1 || results[0].Err != nil {
		t.Errorf("expected 1 successful result with clamped workers, got %+v", results)
	}
}

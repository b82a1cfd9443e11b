package screen

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marco/myflix/internal/connectivity"
	"github.com/marco/myflix/internal/coordinator"
	"github.com/marco/myflix/internal/metadata"
	"github.com/marco/myflix/internal/metadata/cache"
	"github.com/marco/myflix/internal/translate"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeAPI struct{}

func (fakeAPI) GetPopularMovies(ctx context.Context) ([]metadata.Movie, error) {
	return nil, errors.New("not used")
}

func (fakeAPI) GetMovieDetail(ctx context.Context, id int) (*metadata.Movie, error) {
	if id != 550 {
		return nil, metadata.ErrMovieNotFound
	}
	return &metadata.Movie{
		ID:          550,
		Title:       "Fight Club",
		Overview:    "Hello world.",
		ReleaseDate: "1999-10-15T00:00:00.000Z",
		PosterPath:  "/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg",
	}, nil
}

func newTestCoordinator(t *testing.T, cfg *translate.StubEngineConfig) *coordinator.Coordinator {
	t.Helper()
	store, err := cache.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if cfg == nil {
		cfg = &translate.StubEngineConfig{
			DownloadDelay:      10 * time.Millisecond,
			Dictionary:         translate.DefaultStubEngineConfig().Dictionary,
			SupportedLanguages: []string{"en", "es", "fr"},
		}
	}
	coord, err := coordinator.New(coordinator.Deps{
		API:     fakeAPI{},
		Store:   store,
		Engine:  translate.NewStubEngine(cfg),
		Network: connectivity.Static(true),
	}, coordinator.Options{SmoothingInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("coordinator.New failed: %v", err)
	}
	t.Cleanup(func() { coord.Close() })
	return coord
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func openScreen(t *testing.T, coord *coordinator.Coordinator, out *syncBuffer) *Screen {
	t.Helper()
	s := New(coord, out)
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Open(ctx, 550).Await(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitFor(t, "idle pipeline", func() bool {
		return !coord.ModelDownloading().Value() && !coord.Translating()
	})
	return s
}

func TestFormatReleaseDate(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"2021-07-09T00:00:00.000Z", "09-07-2021"},
		{"1999-10-15", "15-10-1999"},
		{"2021-07", "-07-2021"},
		{"2021", "--2021"},
		{"", "--"},
	}

	for _, tc := range testCases {
		if got := FormatReleaseDate(tc.in); got != tc.want {
			t.Errorf("FormatReleaseDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOpen_RendersDetail(t *testing.T) {
	coord := newTestCoordinator(t, nil)
	out := &syncBuffer{}
	s := openScreen(t, coord, out)

	waitFor(t, "detail render", func() bool { return strings.Contains(out.String(), "Fight Club") })
	got := out.String()
	for _, want := range []string{
		"Hello world.",
		"Date released: 15-10-1999",
		"Poster: https://image.tmdb.org/t/p/w500/pB8BM7pdSp6B6Ih7QZ4DrQ3PmJK.jpg",
		"* en - English",
		"  es - Spanish",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if s.Selected().Code != "en" {
		t.Errorf("expected en preselected, got %q", s.Selected().Code)
	}
	if coord.SourceText() != "Hello world." {
		t.Errorf("expected overview as source text, got %q", coord.SourceText())
	}
}

func TestSelectLanguage_RendersTranslation(t *testing.T) {
	coord := newTestCoordinator(t, nil)
	out := &syncBuffer{}
	s := openScreen(t, coord, out)

	if err := s.SelectLanguage("es-MX"); err != nil {
		t.Fatalf("SelectLanguage failed: %v", err)
	}
	waitFor(t, "translation", func() bool {
		return strings.Contains(out.String(), "Overview (es): Hola mundo.")
	})
	if !strings.Contains(out.String(), "Downloading translation model...") {
		t.Errorf("expected progress line:\n%s", out.String())
	}
	if s.Selected().Code != "es" {
		t.Errorf("expected es selected, got %q", s.Selected().Code)
	}
}

func TestSelectLanguage_Unsupported(t *testing.T) {
	coord := newTestCoordinator(t, nil)
	s := openScreen(t, coord, &syncBuffer{})

	if err := s.SelectLanguage("ja"); err == nil {
		t.Error("expected error for unsupported language")
	}
	if s.Selected().Code != "en" {
		t.Errorf("selection should not change, got %q", s.Selected().Code)
	}
}

func TestSelected_FollowsCoordinatorTarget(t *testing.T) {
	coord := newTestCoordinator(t, nil)
	s := openScreen(t, coord, &syncBuffer{})

	coord.SetTargetLanguage(translate.Language{Code: "fr"})
	if s.Selected().Code != "fr" {
		t.Errorf("expected fr from the coordinator, got %q", s.Selected().Code)
	}
}

func TestTranslationFailureRendersError(t *testing.T) {
	coord := newTestCoordinator(t, &translate.StubEngineConfig{
		SupportedLanguages: []string{"en", "fr"},
		TranslateErr:       errors.New("model corrupted"),
	})
	out := &syncBuffer{}
	s := openScreen(t, coord, out)

	if err := s.SelectLanguage("fr"); err != nil {
		t.Fatalf("SelectLanguage failed: %v", err)
	}
	waitFor(t, "error render", func() bool {
		return strings.Contains(out.String(), "error: model corrupted")
	})
}

func TestClose_StopsRendering(t *testing.T) {
	coord := newTestCoordinator(t, nil)
	out := &syncBuffer{}
	s := openScreen(t, coord, out)

	s.Close()
	before := out.String()
	coord.Detail().Set(metadata.Movie{ID: 1, Title: "After Close"})

	if out.String() != before {
		t.Errorf("screen rendered after Close:\n%s", out.String())
	}
	if err := s.SelectLanguage("es"); err == nil {
		t.Error("expected error selecting on a closed screen")
	}
}

// Package screen renders a movie detail view to a text stream and forwards
// language selections to the coordinator.
package screen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/marco/myflix/internal/coordinator"
	"github.com/marco/myflix/internal/metadata"
	"github.com/marco/myflix/internal/task"
	"github.com/marco/myflix/internal/translate"
)

// DefaultLanguage is preselected when the screen opens.
const DefaultLanguage = translate.English

// Screen is the detail view for one movie.
type Screen struct {
	coord        *coordinator.Coordinator
	out          io.Writer
	imageBaseURL string

	mu          sync.Mutex
	downloading bool
	cancels     []func()
	closed      bool
}

// Option configures a Screen.
type Option func(*Screen)

// WithImageBaseURL overrides the poster image host.
func WithImageBaseURL(u string) Option {
	return func(s *Screen) { s.imageBaseURL = u }
}

// New creates a screen writing to out.
func New(coord *coordinator.Coordinator, out io.Writer, opts ...Option) *Screen {
	s := &Screen{coord: coord, out: out}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open requests the movie detail, subscribes to the coordinator state and
// selects the default language. The returned task completes when the detail
// is loaded.
func (s *Screen) Open(ctx context.Context, id int) *task.Task[metadata.Movie] {
	detail := s.coord.GetDetail(ctx, id)

	// Observe delivers the current value synchronously, so s.mu must not be held.
	cancels := []func(){
		s.coord.Detail().Observe(s.renderDetail),
		s.coord.TranslatedText().Observe(s.renderTranslation),
		s.coord.ModelDownloading().Observe(s.renderProgress),
	}
	s.mu.Lock()
	s.cancels = append(s.cancels, cancels...)
	s.mu.Unlock()

	s.renderLanguages()
	if err := s.SelectLanguage(DefaultLanguage); err != nil {
		slog.Debug("default language not offered", "language", DefaultLanguage, "error", err)
	}
	return detail
}

// SelectLanguage makes code the translation target.
func (s *Screen) SelectLanguage(code string) error {
	var codes []string
	for _, l := range s.coord.AvailableLanguages() {
		codes = append(codes, l.Code)
	}
	resolved, ok := translate.ResolveTag(code, codes)
	if !ok {
		return fmt.Errorf("unsupported language %q", code)
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("screen closed")
	}

	s.coord.SetTargetLanguage(translate.Language{Code: resolved})
	return nil
}

// Selected returns the coordinator's current translation target.
func (s *Screen) Selected() translate.Language {
	lang, _ := s.coord.TargetLanguage().Get()
	return lang
}

// Close stops rendering. It does not close the coordinator.
func (s *Screen) Close() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.closed = true
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (s *Screen) renderDetail(m metadata.Movie) {
	s.coord.SetSourceText(m.Overview)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", m.Title)
	fmt.Fprintf(&b, "%s\n", m.Overview)
	fmt.Fprintf(&b, "Date released: %s\n", FormatReleaseDate(m.ReleaseDate))
	if m.PosterPath != "" {
		fmt.Fprintf(&b, "Poster: %s\n", metadata.PosterURL(s.imageBaseURL, m.PosterPath))
	}
	s.write(b.String())
}

func (s *Screen) renderLanguages() {
	langs := s.coord.AvailableLanguages()
	if len(langs) == 0 {
		s.write("No translation languages available\n")
		return
	}
	var b strings.Builder
	b.WriteString("Languages:")
	for _, l := range langs {
		marker := " "
		if l.Code == DefaultLanguage {
			marker = "*"
		}
		fmt.Fprintf(&b, "\n %s %s", marker, l)
	}
	b.WriteString("\n")
	s.write(b.String())
}

func (s *Screen) renderTranslation(r translate.ResultOrError) {
	if r.Failed() {
		s.write(fmt.Sprintf("error: %s\n", r.Err))
		return
	}
	if r.Text == "" {
		return
	}
	s.write(fmt.Sprintf("Overview (%s): %s\n", r.Target.Code, r.Text))
}

func (s *Screen) renderProgress(downloading bool) {
	s.mu.Lock()
	changed := s.downloading != downloading
	s.downloading = downloading
	s.mu.Unlock()
	if !changed {
		return
	}
	if downloading {
		s.write("Downloading translation model...\n")
	} else {
		s.write("Translation model ready\n")
	}
}

func (s *Screen) write(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := io.WriteString(s.out, text); err != nil {
		slog.Warn("failed to write screen output", "error", err)
	}
}

// FormatReleaseDate turns "YYYY-MM-DD..." into "DD-MM-YYYY" by fixed
// offsets. Short input yields whatever fragments exist.
func FormatReleaseDate(releaseDate string) string {
	return substr(releaseDate, 8, 10) + "-" + substr(releaseDate, 5, 7) + "-" + substr(releaseDate, 0, 4)
}

func substr(s string, start, end int) string {
	if start > len(s) {
		return ""
	}
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}

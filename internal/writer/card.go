// Package writer exports movie cards as markdown files with YAML front matter.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marco/myflix/internal/metadata"
	"github.com/marco/myflix/internal/translate"
)

// CardWriter writes movie cards into a directory
type CardWriter struct {
	dir string
	now func() time.Time
}

// NewCardWriter creates a new card writer
func NewCardWriter(dir string) *CardWriter {
	return &CardWriter{dir: dir, now: time.Now}
}

// NewCard builds a card from a movie and the latest translation outcome.
// A zero result leaves the translation fields empty.
func NewCard(movie metadata.Movie, posterURL string, result translate.ResultOrError) *Card {
	card := &Card{
		Slug:        GenerateSlug(movie),
		Title:       movie.Title,
		TMDBID:      movie.ID,
		Overview:    movie.Overview,
		ReleaseDate: movie.ReleaseDate,
		PosterURL:   posterURL,
	}
	switch {
	case result.Failed():
		card.TranslationLanguage = result.Target.Code
		card.TranslationError = result.Err.Error()
	case result.Text != "":
		card.TranslationLanguage = result.Target.Code
		card.TranslatedOverview = result.Text
	}
	return card
}

// Write writes card to <dir>/<slug>.md and returns the file path
func (w *CardWriter) Write(card *Card) (string, error) {
	if card.ExportedAt.IsZero() {
		card.ExportedAt = w.now().UTC()
	}
	if card.Slug == "" {
		card.Slug = fmt.Sprintf("movie-%d", card.TMDBID)
	}

	content, err := w.Generate(card)
	if err != nil {
		return "", fmt.Errorf("failed to generate card: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cards directory: %w", err)
	}

	filePath := filepath.Join(w.dir, card.Slug+".md")
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write card file: %w", err)
	}

	return filePath, nil
}

// Generate renders a card as markdown with YAML front matter
func (w *CardWriter) Generate(card *Card) (string, error) {
	var sb strings.Builder

	sb.WriteString("---\n")

	// Titles and overviews routinely contain ": ", so free text is always
	// double quoted.
	var docNode yaml.Node
	if err := docNode.Encode(card); err != nil {
		return "", fmt.Errorf("failed to marshal card to YAML: %w", err)
	}
	forceQuotedFields(&docNode, "title", "overview", "translatedOverview", "translationError")
	yamlData, err := yaml.Marshal(&docNode)
	if err != nil {
		return "", fmt.Errorf("failed to marshal card to YAML: %w", err)
	}

	sb.Write(yamlData)
	sb.WriteString("---\n\n")

	fmt.Fprintf(&sb, "# %s", card.Title)
	if len(card.ReleaseDate) >= 4 {
		fmt.Fprintf(&sb, " (%s)", card.ReleaseDate[:4])
	}
	sb.WriteString("\n\n")

	if card.PosterURL != "" {
		fmt.Fprintf(&sb, "![Poster](%s)\n\n", card.PosterURL)
	}

	if card.Overview != "" {
		sb.WriteString("## Overview\n\n")
		sb.WriteString(card.Overview)
		sb.WriteString("\n\n")
	}

	if card.TranslationLanguage != "" {
		lang := translate.Language{Code: card.TranslationLanguage}
		fmt.Fprintf(&sb, "## Overview (%s)\n\n", lang.Name())
		if card.TranslationError != "" {
			fmt.Fprintf(&sb, "_Translation failed: %s_\n\n", card.TranslationError)
		} else {
			sb.WriteString(card.TranslatedOverview)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("## Links\n\n")
	fmt.Fprintf(&sb, "- [View on TMDB](https://www.themoviedb.org/movie/%d)\n", card.TMDBID)

	return sb.String(), nil
}

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]+`)
	slugHyphenRuns   = regexp.MustCompile(`-+`)
)

// GenerateSlug creates a URL-friendly slug from the title and release year.
// Titles without any ASCII letters or digits fall back to the TMDB id.
func GenerateSlug(movie metadata.Movie) string {
	slug := strings.ToLower(movie.Title)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugHyphenRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		slug = "movie-" + strconv.Itoa(movie.ID)
	}
	if len(movie.ReleaseDate) >= 4 {
		if year, err := strconv.Atoi(movie.ReleaseDate[:4]); err == nil && year > 0 {
			slug = slug + "-" + strconv.Itoa(year)
		}
	}
	return slug
}

// forceQuotedFields sets DoubleQuotedStyle on the named scalar fields of a
// DocumentNode holding a MappingNode.
func forceQuotedFields(doc *yaml.Node, keys ...string) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return
	}
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[k] = true
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if keySet[mapping.Content[i].Value] {
			mapping.Content[i+1].Style = yaml.DoubleQuotedStyle
		}
	}
}

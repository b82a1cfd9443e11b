package writer

import (
	"time"
)

// Card is the exported view of a movie with an optional translation
type Card struct {
	Title               string    `yaml:"title"`
	Slug                string    `yaml:"slug"`
	TMDBID              int       `yaml:"tmdbId"`
	Overview            string    `yaml:"overview"`
	ReleaseDate         string    `yaml:"releaseDate"`
	PosterURL           string    `yaml:"posterUrl,omitempty"`
	PosterFile          string    `yaml:"posterFile,omitempty"`
	TranslationLanguage string    `yaml:"translationLanguage,omitempty"`
	TranslatedOverview  string    `yaml:"translatedOverview,omitempty"`
	TranslationError    string    `yaml:"translationError,omitempty"`
	ExportedAt          time.Time `yaml:"exportedAt"`
}

// Package translate defines the translation engine boundary and the
// language and result types shared by the coordinator and the screen.
package translate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	// English is the fixed source language of movie overviews.
	English = "en"
	// Undetermined is returned by identifiers that cannot decide.
	Undetermined = "und"
)

var (
	// ErrTranslatorClosed is returned by a translator used after Close.
	ErrTranslatorClosed = errors.New("translator closed")
	// ErrUnsupportedPair is returned when an engine has no model for a pair.
	ErrUnsupportedPair = errors.New("unsupported language pair")
	// ErrIdentifierClosed is returned by an identifier used after Close.
	ErrIdentifierClosed = errors.New("language identifier closed")
)

// Options identifies a translator by its language pair.
type Options struct {
	Source string
	Target string
}

func (o Options) String() string {
	return o.Source + "->" + o.Target
}

// Translator translates text for one language pair.
type Translator interface {
	// DownloadModelIfNeeded makes the pair's model available locally.
	DownloadModelIfNeeded(ctx context.Context) error
	// Translate converts text from the source to the target language.
	Translate(ctx context.Context, text string) (string, error)
	// Close releases the translator's resources.
	Close() error
}

// Engine creates translators and lists the languages it supports.
type Engine interface {
	Languages() []string
	NewTranslator(opts Options) Translator
}

// Identifier detects the language of a text.
type Identifier interface {
	Identify(ctx context.Context, text string) (string, error)
	Close() error
}

// Language is a selectable target language.
type Language struct {
	Code string
}

// Name returns the English display name of the language.
func (l Language) Name() string {
	tag, err := language.Parse(l.Code)
	if err != nil {
		return l.Code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return l.Code
}

func (l Language) String() string {
	return fmt.Sprintf("%s - %s", l.Code, l.Name())
}

// IsZero reports whether no language is selected.
func (l Language) IsZero() bool {
	return l.Code == ""
}

// Languages wraps codes as Language values sorted by code.
func Languages(codes []string) []Language {
	sorted := slices.Clone(codes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	out := make([]Language, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, Language{Code: c})
	}
	return out
}

// ResolveTag maps a BCP 47 tag onto one of the supported codes. It returns
// false when the tag is malformed or its base language is not supported.
func ResolveTag(tag string, supported []string) (string, bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", false
	}
	if slices.Contains(supported, strings.ToLower(tag)) {
		return strings.ToLower(tag), true
	}

	parsed, err := language.Parse(tag)
	if err != nil {
		return "", false
	}
	base, conf := parsed.Base()
	if conf == language.No {
		return "", false
	}
	code := base.String()
	if slices.Contains(supported, code) {
		return code, true
	}
	return "", false
}

// ResultOrError is the outcome of a translation attempt. Exactly one of
// Text or Err is meaningful: Err non-nil means the attempt failed.
type ResultOrError struct {
	Text   string
	Err    error
	Target Language
	ID     string
}

// Success returns a successful result.
func Success(text string) ResultOrError {
	return ResultOrError{Text: text}
}

// Failure returns a failed result. A nil err is replaced so the result
// still reads as a failure.
func Failure(err error) ResultOrError {
	if err == nil {
		err = errors.New("translation failed")
	}
	return ResultOrError{Err: err}
}

// Failed reports whether the result carries an error.
func (r ResultOrError) Failed() bool {
	return r.Err != nil
}

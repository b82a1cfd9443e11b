package translate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// StubEngineConfig configures the stub engine behavior.
type StubEngineConfig struct {
	// DownloadDelay simulates model download time on first use of a translator.
	DownloadDelay time.Duration
	// TranslateDelay simulates translation processing time.
	TranslateDelay time.Duration
	// Dictionary maps target language to source text to translated text.
	// Texts missing from it are returned as "[LANG] " + original text.
	Dictionary map[string]map[string]string
	// SupportedLanguages lists the language codes the engine offers.
	SupportedLanguages []string
	// DownloadErr, when set, is returned by every model download.
	DownloadErr error
	// TranslateErr, when set, is returned by every translation.
	TranslateErr error
	// CloseErr, when set, is returned by every translator Close.
	CloseErr error
}

// DefaultStubEngineConfig returns sensible defaults for offline use and tests.
func DefaultStubEngineConfig() *StubEngineConfig {
	return &StubEngineConfig{
		DownloadDelay:  200 * time.Millisecond,
		TranslateDelay: 20 * time.Millisecond,
		Dictionary: map[string]map[string]string{
			"es": {
				"Hello world.":    "Hola mundo.",
				"This is a test.": "Esto es una prueba.",
			},
			"fr": {
				"Hello world.":    "Bonjour le monde.",
				"This is a test.": "Ceci est un test.",
			},
		},
		SupportedLanguages: []string{"de", "en", "es", "fr", "it", "ja", "pt", "vi"},
	}
}

// StubEngine is an offline engine that returns deterministic translations.
// It counts translators so callers can verify resource release.
type StubEngine struct {
	config *StubEngineConfig

	created      atomic.Int64
	closed       atomic.Int64
	downloads    atomic.Int64
	translations atomic.Int64
}

// NewStubEngine creates a new stub engine with the given config.
func NewStubEngine(config *StubEngineConfig) *StubEngine {
	if config == nil {
		config = DefaultStubEngineConfig()
	}
	return &StubEngine{config: config}
}

// Languages returns the supported language codes.
func (e *StubEngine) Languages() []string {
	return e.config.SupportedLanguages
}

// NewTranslator creates a translator for opts.
func (e *StubEngine) NewTranslator(opts Options) Translator {
	e.created.Add(1)
	return &stubTranslator{engine: e, opts: opts}
}

// Created returns how many translators were created.
func (e *StubEngine) Created() int64 { return e.created.Load() }

// Closed returns how many translators were closed.
func (e *StubEngine) Closed() int64 { return e.closed.Load() }

// Downloads returns how many model downloads actually ran.
func (e *StubEngine) Downloads() int64 { return e.downloads.Load() }

// Translations returns how many translations ran.
func (e *StubEngine) Translations() int64 { return e.translations.Load() }

type stubTranslator struct {
	engine *StubEngine
	opts   Options

	mu         sync.Mutex
	downloaded bool
	closed     bool
}

func (t *stubTranslator) DownloadModelIfNeeded(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTranslatorClosed
	}
	if t.downloaded {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	t.engine.downloads.Add(1)
	if err := sleep(ctx, t.engine.config.DownloadDelay); err != nil {
		return err
	}
	if t.engine.config.DownloadErr != nil {
		return t.engine.config.DownloadErr
	}

	t.mu.Lock()
	t.downloaded = true
	t.mu.Unlock()
	return nil
}

func (t *stubTranslator) Translate(ctx context.Context, text string) (string, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return "", ErrTranslatorClosed
	}

	t.engine.translations.Add(1)
	if err := sleep(ctx, t.engine.config.TranslateDelay); err != nil {
		return "", err
	}
	if t.engine.config.TranslateErr != nil {
		return "", t.engine.config.TranslateErr
	}
	return t.lookupTranslation(text), nil
}

func (t *stubTranslator) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		t.engine.closed.Add(1)
	}
	return t.engine.config.CloseErr
}

// lookupTranslation finds a translation in the dictionary or generates a default.
func (t *stubTranslator) lookupTranslation(text string) string {
	if langDict, ok := t.engine.config.Dictionary[t.opts.Target]; ok {
		if translated, ok := langDict[text]; ok {
			return translated
		}
	}
	return "[" + t.opts.Target + "] " + text
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

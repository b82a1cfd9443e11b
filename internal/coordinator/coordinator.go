// Package coordinator holds the observable movie and translation state
// behind the detail screen.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marco/myflix/internal/connectivity"
	"github.com/marco/myflix/internal/metadata"
	"github.com/marco/myflix/internal/metadata/cache"
	"github.com/marco/myflix/internal/observable"
	"github.com/marco/myflix/internal/task"
	"github.com/marco/myflix/internal/translate"
)

const (
	DefaultSmoothingInterval   = 50 * time.Millisecond
	DefaultWatchdogTimeout     = 15 * time.Second
	DefaultTranslatorCacheSize = 1
	DefaultIdentifierThreshold = 0.5
)

// MovieAPI is the remote movie source.
type MovieAPI interface {
	GetPopularMovies(ctx context.Context) ([]metadata.Movie, error)
	GetMovieDetail(ctx context.Context, id int) (*metadata.Movie, error)
}

// Deps are the external collaborators of a Coordinator.
type Deps struct {
	API        MovieAPI
	Store      cache.Store
	Engine     translate.Engine
	Identifier translate.Identifier // defaults to a trigram identifier
	Network    connectivity.Checker // defaults to the host interface checker
}

// Options tunes the translation pipeline. Zero values take the defaults.
type Options struct {
	SmoothingInterval   time.Duration
	WatchdogTimeout     time.Duration
	TranslatorCacheSize int
	SourceLanguage      string
}

func (o *Options) applyDefaults() {
	if o.SmoothingInterval <= 0 {
		o.SmoothingInterval = DefaultSmoothingInterval
	}
	if o.WatchdogTimeout <= 0 {
		o.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if o.TranslatorCacheSize <= 0 {
		o.TranslatorCacheSize = DefaultTranslatorCacheSize
	}
	if o.SourceLanguage == "" {
		o.SourceLanguage = translate.English
	}
}

// Coordinator owns the detail, popular list and translation state.
type Coordinator struct {
	api        MovieAPI
	store      cache.Store
	identifier translate.Identifier
	network    connectivity.Checker
	opts       Options

	ctx    context.Context
	cancel context.CancelFunc

	movies           *observable.Value[[]metadata.Movie]
	detail           *observable.Value[metadata.Movie]
	targetLang       *observable.Value[translate.Language]
	translatedText   *observable.Value[translate.ResultOrError]
	modelDownloading *observable.Smoothed
	translating      atomic.Bool

	supported []string
	languages []translate.Language

	// mu serialises translation triggers and guards sourceText and closed.
	mu         sync.Mutex
	sourceText string
	closed     bool

	translators *translatorCache
	closeOnce   sync.Once
	closeErr    error
}

// New creates a Coordinator. The engine's language list is read once here.
func New(deps Deps, opts Options) (*Coordinator, error) {
	if deps.API == nil || deps.Store == nil || deps.Engine == nil {
		return nil, errors.New("coordinator requires a movie API, a store and a translation engine")
	}
	if deps.Identifier == nil {
		deps.Identifier = translate.NewTrigramIdentifier(DefaultIdentifierThreshold)
	}
	if deps.Network == nil {
		deps.Network = connectivity.NewInterfaceChecker()
	}
	opts.applyDefaults()

	translators, err := newTranslatorCache(deps.Engine, opts.TranslatorCacheSize)
	if err != nil {
		return nil, err
	}

	supported := slices.Clone(deps.Engine.Languages())
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		api:              deps.API,
		store:            deps.Store,
		identifier:       deps.Identifier,
		network:          deps.Network,
		opts:             opts,
		ctx:              ctx,
		cancel:           cancel,
		movies:           observable.New[[]metadata.Movie](),
		detail:           observable.New[metadata.Movie](),
		targetLang:       observable.New[translate.Language](),
		translatedText:   observable.New[translate.ResultOrError](),
		modelDownloading: observable.NewSmoothed(opts.SmoothingInterval, false),
		supported:        supported,
		languages:        translate.Languages(supported),
		translators:      translators,
	}, nil
}

// Movies is the popular movie list.
func (c *Coordinator) Movies() *observable.Value[[]metadata.Movie] { return c.movies }

// Detail is the most recently loaded movie detail.
func (c *Coordinator) Detail() *observable.Value[metadata.Movie] { return c.detail }

// TargetLanguage is the selected translation target.
func (c *Coordinator) TargetLanguage() *observable.Value[translate.Language] { return c.targetLang }

// TranslatedText is the outcome of the last completed translation.
func (c *Coordinator) TranslatedText() *observable.Value[translate.ResultOrError] {
	return c.translatedText
}

// ModelDownloading is true while a model download is running.
func (c *Coordinator) ModelDownloading() *observable.Smoothed { return c.modelDownloading }

// AvailableLanguages returns the selectable target languages.
func (c *Coordinator) AvailableLanguages() []translate.Language {
	return slices.Clone(c.languages)
}

// Translating reports whether a translation is in flight.
func (c *Coordinator) Translating() bool { return c.translating.Load() }

// GetDetail publishes the movie with the given id, from the store when
// cached, otherwise from the API. A remote result is written to the store.
// Remote failures are logged and leave the published detail unchanged.
func (c *Coordinator) GetDetail(ctx context.Context, id int) *task.Task[metadata.Movie] {
	if id < 0 {
		return task.Failed[metadata.Movie](fmt.Errorf("invalid movie id %d", id))
	}

	cached, err := c.store.GetDetail(ctx, id)
	if err != nil {
		slog.Warn("failed to read detail cache", "movie_id", id, "error", err)
	}
	if len(cached) > 0 && cached[0].ID == id {
		slog.Debug("detail cache hit", "movie_id", id)
		c.detail.Set(cached[0])
		return task.Completed(cached[0])
	}

	slog.Debug("detail cache miss", "movie_id", id)
	return task.Run(ctx, func(ctx context.Context) (metadata.Movie, error) {
		movie, err := c.api.GetMovieDetail(ctx, id)
		if err != nil {
			slog.Error("failed to fetch movie detail", "movie_id", id, "error", err)
			return metadata.Movie{}, err
		}

		c.detail.Set(*movie)
		if err := c.store.InsertDetail(ctx, *movie); err != nil {
			slog.Warn("failed to cache movie detail", "movie_id", id, "error", err)
		}
		return *movie, nil
	})
}

// GetPopularMovies publishes the popular list: fetched remotely when the
// network is available, otherwise every cached movie.
func (c *Coordinator) GetPopularMovies(ctx context.Context) *task.Task[[]metadata.Movie] {
	cached, err := c.store.GetAll(ctx)
	if err != nil {
		slog.Warn("failed to read cached movies", "error", err)
	}

	if !c.network.IsOnline(ctx) {
		slog.Info("offline, serving cached movies", "count", len(cached))
		c.movies.Set(cached)
		return task.Completed(cached)
	}

	return task.Run(ctx, func(ctx context.Context) ([]metadata.Movie, error) {
		movies, err := c.api.GetPopularMovies(ctx)
		if err != nil {
			slog.Error("failed to fetch popular movies", "error", err)
			return nil, err
		}
		c.movies.Set(movies)
		return movies, nil
	})
}

// SetSourceText sets the text that later translations operate on. It does
// not start a translation.
func (c *Coordinator) SetSourceText(text string) {
	c.mu.Lock()
	c.sourceText = text
	c.mu.Unlock()

	if text == "" {
		return
	}
	detected, err := c.identifier.Identify(c.ctx, text)
	if err != nil {
		slog.Debug("language identification failed", "error", err)
		return
	}
	if detected != translate.Undetermined && detected != c.opts.SourceLanguage {
		slog.Warn("source text does not look like the source language",
			"detected", detected,
			"source", c.opts.SourceLanguage,
		)
	}
}

// SourceText returns the current source text.
func (c *Coordinator) SourceText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sourceText
}

// SetTargetLanguage publishes the selection and starts a translation of the
// source text. A trigger arriving while a download or translation is in
// flight, or after Close, is dropped; its task completes canceled and
// publishes nothing.
func (c *Coordinator) SetTargetLanguage(lang translate.Language) *task.Task[string] {
	c.targetLang.Set(lang)

	attempt := uuid.NewString()
	t := c.translate(attempt, lang)
	t.OnComplete(c.publishTranslation(attempt, lang))
	return t
}

// translate runs the pipeline for target. The result is always labelled with
// the same target, whatever selection a concurrent trigger published since.
func (c *Coordinator) translate(attempt string, target translate.Language) *task.Task[string] {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := c.sourceText
	log := slog.With("attempt", attempt, "target", target.Code)

	if c.closed {
		log.Debug("translation request dropped: coordinator closed")
		return task.Canceled[string]()
	}
	if c.modelDownloading.Value() || c.translating.Load() {
		log.Debug("translation request dropped: previous request in flight")
		return task.Canceled[string]()
	}
	if target.IsZero() || text == "" {
		return task.Completed("")
	}

	code, ok := translate.ResolveTag(target.Code, c.supported)
	if !ok {
		log.Debug("translation request dropped: unsupported language")
		return task.Canceled[string]()
	}

	translator := c.translators.get(translate.Options{Source: c.opts.SourceLanguage, Target: code})
	c.modelDownloading.Set(true)

	// The watchdog only unblocks the flag; the download keeps running.
	watchdog := time.AfterFunc(c.opts.WatchdogTimeout, func() {
		log.Warn("model download still running, clearing progress", "timeout", c.opts.WatchdogTimeout)
		c.modelDownloading.Set(false)
	})

	started := time.Now()
	download := task.Run(c.ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, translator.DownloadModelIfNeeded(ctx)
	})
	download.OnComplete(func(t *task.Task[struct{}]) {
		watchdog.Stop()
		c.modelDownloading.Set(false)
		if _, err := t.Result(); err != nil && !task.IsCanceled(err) {
			log.Warn("model download failed", "error", err)
			return
		}
		log.Debug("model ready", "duration_ms", time.Since(started).Milliseconds())
	})

	c.translating.Store(true)
	result := task.Then(c.ctx, download, func(ctx context.Context, _ struct{}) (string, error) {
		return translator.Translate(ctx, text)
	})
	result.OnComplete(func(*task.Task[string]) {
		c.translating.Store(false)
	})
	return result
}

func (c *Coordinator) publishTranslation(attempt string, target translate.Language) func(*task.Task[string]) {
	return func(t *task.Task[string]) {
		text, err := t.Result()

		var r translate.ResultOrError
		switch {
		case err == nil:
			r = translate.Success(text)
		case task.IsCanceled(err):
			return
		default:
			slog.Error("translation failed", "attempt", attempt, "target", target.Code, "error", err)
			r = translate.Failure(err)
		}
		r.Target = target
		r.ID = attempt
		c.translatedText.Set(r)
	}
}

// Close cancels in-flight work, releases every cached translator and closes
// the language identifier. All steps run even when one fails.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		// translate holds mu until its translator is cached, so the purge
		// below sees every translator created before this point.
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		c.modelDownloading.Stop()
		c.closeErr = errors.Join(
			c.translators.purge(),
			c.identifier.Close(),
		)
	})
	return c.closeErr
}

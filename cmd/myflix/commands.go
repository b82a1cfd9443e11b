package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marco/myflix/internal/config"
	"github.com/marco/myflix/internal/metadata"
	"github.com/marco/myflix/internal/poster"
	"github.com/marco/myflix/internal/screen"
	"github.com/marco/myflix/internal/translate"
	"github.com/marco/myflix/internal/writer"
)

func runPopular(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("popular", flag.ExitOnError)
	downloadPosters := fs.Bool("posters", false, "Download posters of the listed movies")
	fs.Parse(args)

	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	movies, err := a.coord.GetPopularMovies(ctx).Await(ctx)
	if err != nil {
		return fmt.Errorf("failed to load popular movies: %w", err)
	}

	for _, m := range movies {
		year := ""
		if len(m.ReleaseDate) >= 4 {
			year = " (" + m.ReleaseDate[:4] + ")"
		}
		fmt.Printf("%8d  %s%s\n", m.ID, m.Title, year)
	}
	fmt.Printf("\n%d movies\n", len(movies))

	if *downloadPosters {
		return downloadAllPosters(ctx, a.client, movies, cfg.Output.PostersDir, cfg.Output.PosterWorkers)
	}
	return nil
}

func downloadAllPosters(ctx context.Context, client *metadata.Client, movies []metadata.Movie, dir string, workers int) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create posters directory: %w", err)
	}

	// Progress reporter
	var processedCount int64
	total := int64(len(movies))
	progressCtx, stopProgress := context.WithCancel(ctx)
	defer stopProgress()
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				current := atomic.LoadInt64(&processedCount)
				if current > 0 && current < total {
					slog.Info("progress", "processed", current, "total", total,
						"percent", fmt.Sprintf("%.0f%%", float64(current)/float64(total)*100))
				}
			case <-progressCtx.Done():
				return
			}
		}
	}()

	results := poster.DownloadAll(ctx, client, movies, dir, workers, &processedCount)

	var failed int
	var bytes int64
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		bytes += r.Bytes
	}
	fmt.Printf("Downloaded %d posters (%s) to %s\n", len(results)-failed, humanize.Bytes(uint64(bytes)), dir)
	if failed > 0 {
		return fmt.Errorf("%d poster downloads failed", failed)
	}
	return nil
}

func runDetail(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("detail", flag.ExitOnError)
	id := fs.Int("id", 0, "TMDB movie id")
	lang := fs.String("lang", cfg.Translation.TargetLanguage, "Target language for the overview")
	watch := fs.Bool("watch", false, "Keep running and follow translation.target_language in the config file")
	export := fs.Bool("export", false, "Write a movie card to output.cards_dir")
	downloadPoster := fs.Bool("poster", false, "Download the poster to output.posters_dir")
	fs.Parse(args)

	if *id <= 0 {
		return fmt.Errorf("detail requires -id")
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	scr := screen.New(a.coord, os.Stdout)
	defer scr.Close()

	movie, err := scr.Open(ctx, *id).Await(ctx)
	if err != nil {
		if errors.Is(err, metadata.ErrMovieNotFound) {
			return fmt.Errorf("movie %d not found", *id)
		}
		return fmt.Errorf("failed to load movie %d: %w", *id, err)
	}
	if err := waitIdle(ctx, a.coord); err != nil {
		return err
	}

	result, err := selectAndTranslate(ctx, a, scr, *lang)
	if err != nil {
		return err
	}

	if *downloadPoster && movie.PosterPath != "" {
		if err := downloadAllPosters(ctx, a.client, []metadata.Movie{movie}, cfg.Output.PostersDir, 1); err != nil {
			slog.Warn("poster download failed", "movie_id", movie.ID, "error", err)
		}
	}

	if *export {
		posterURL := ""
		if movie.PosterPath != "" {
			posterURL = a.client.PosterURL(movie.PosterPath)
		}
		card := writer.NewCard(movie, posterURL, result)
		if movie.PosterPath != "" && *downloadPoster {
			card.PosterFile = poster.FileName(movie)
		}
		path, err := writer.NewCardWriter(cfg.Output.CardsDir).Write(card)
		if err != nil {
			return err
		}
		fmt.Printf("Card written to %s\n", path)
	}

	if !*watch {
		return nil
	}
	return watchTargetLanguage(ctx, a, scr)
}

// selectAndTranslate selects code on the screen and waits for its result.
// The default language is already selected by Open.
func selectAndTranslate(ctx context.Context, a *app, scr *screen.Screen, code string) (translate.ResultOrError, error) {
	var codes []string
	for _, l := range a.coord.AvailableLanguages() {
		codes = append(codes, l.Code)
	}
	resolved, ok := translate.ResolveTag(code, codes)
	if !ok {
		return translate.ResultOrError{}, fmt.Errorf("language %q is not available (see the languages command)", code)
	}
	if resolved == scr.Selected().Code {
		r, _ := a.coord.TranslatedText().Get()
		return r, nil
	}

	return awaitTranslation(ctx, a.coord, resolved, func() error {
		return scr.SelectLanguage(resolved)
	})
}

func watchTargetLanguage(ctx context.Context, a *app, scr *screen.Screen) error {
	fmt.Fprintf(os.Stderr, "Watching %s for target language changes (Ctrl+C to stop)\n", *configPath)
	return config.Watch(ctx, *configPath, 200*time.Millisecond, func(cfg *config.Config) {
		code := cfg.Translation.TargetLanguage
		if code == scr.Selected().Code {
			return
		}
		if err := waitIdle(ctx, a.coord); err != nil {
			return
		}
		if _, err := selectAndTranslate(ctx, a, scr, code); err != nil {
			slog.Warn("failed to switch target language", "language", code, "error", err)
		}
	})
}

func runLanguages(ctx context.Context, cfg *config.Config) error {
	engine, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	for _, l := range translate.Languages(engine.Languages()) {
		fmt.Println(l)
	}
	return nil
}

func runCacheClear(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	movies, err := store.GetAll(ctx)
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Printf("Removed %d cached movies from %s\n", len(movies), cfg.Cache.Path)
	return nil
}

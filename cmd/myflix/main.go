package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/marco/myflix/internal/config"
)

var (
	configPath = flag.String("config", "./config/config.yaml", "Path to configuration file")
	verbose    = flag.Bool("verbose", false, "Show detailed logging")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: myflix [flags] <command> [command flags]

Commands:
  popular      list popular movies (cached movies when offline)
  detail       show a movie detail and translate its overview
  languages    list translation target languages
  cache-clear  delete every cached movie

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	slog.Debug("configuration loaded", "path", *configPath, "engine", cfg.Translation.Engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command, args := flag.Arg(0), flag.Args()[1:]
	switch command {
	case "popular":
		err = runPopular(ctx, cfg, args)
	case "detail":
		err = runDetail(ctx, cfg, args)
	case "languages":
		err = runLanguages(ctx, cfg)
	case "cache-clear":
		err = runCacheClear(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig falls back to defaults when the config file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config file not found, using defaults", "path", path)
		return config.Parse(nil)
	}
	return cfg, err
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EngineLibre = "libre"
	EngineStub  = "stub"
)

// Config represents the application configuration
type Config struct {
	TMDB        TMDBConfig        `yaml:"tmdb"`
	Cache       CacheConfig       `yaml:"cache"`
	Translation TranslationConfig `yaml:"translation"`
	Network     NetworkConfig     `yaml:"network"`
	Output      OutputConfig      `yaml:"output"`
}

// TMDBConfig holds TMDB API configuration
type TMDBConfig struct {
	APIKey                string `yaml:"api_key"`
	Language              string `yaml:"language"`
	MaxAttempts           int    `yaml:"max_attempts"`            // 1 means no retries
	InitialBackoffMs      int    `yaml:"initial_backoff_ms"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"` // 0 means no timeout
}

// CacheConfig holds the local movie cache settings
type CacheConfig struct {
	Path string `yaml:"path"`
}

// TranslationConfig holds translation engine and pipeline settings
type TranslationConfig struct {
	Engine              string `yaml:"engine"`
	ServerURL           string `yaml:"server_url"`
	APIKey              string `yaml:"api_key"`
	TargetLanguage      string `yaml:"target_language"`
	SmoothingMs         int    `yaml:"smoothing_ms"`
	WatchdogSeconds     int    `yaml:"watchdog_seconds"`
	TranslatorCacheSize int    `yaml:"translator_cache_size"`
}

// NetworkConfig overrides connectivity detection when ForceOnline is set
type NetworkConfig struct {
	ForceOnline *bool `yaml:"force_online"`
}

// OutputConfig holds export settings
type OutputConfig struct {
	CardsDir      string `yaml:"cards_dir"`
	PostersDir    string `yaml:"posters_dir"`
	PosterWorkers int    `yaml:"poster_workers"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	path, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Ensure the cache directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return cfg, nil
}

// Parse expands environment variables in data, decodes it, fills defaults
// and validates the result.
func Parse(data []byte) (*Config, error) {
	expandedData := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.TMDB.Language == "" {
		c.TMDB.Language = "en-US"
	}
	if c.TMDB.MaxAttempts == 0 {
		c.TMDB.MaxAttempts = 1
	}
	if c.TMDB.InitialBackoffMs == 0 {
		c.TMDB.InitialBackoffMs = 1000
	}

	if c.Cache.Path == "" {
		c.Cache.Path = "~/.myflix/cache.db"
	}

	if c.Translation.Engine == "" {
		c.Translation.Engine = EngineStub
	}
	if c.Translation.TargetLanguage == "" {
		c.Translation.TargetLanguage = "en"
	}
	if c.Translation.SmoothingMs == 0 {
		c.Translation.SmoothingMs = 50
	}
	if c.Translation.WatchdogSeconds == 0 {
		c.Translation.WatchdogSeconds = 15
	}
	if c.Translation.TranslatorCacheSize == 0 {
		c.Translation.TranslatorCacheSize = 1
	}

	if c.Output.CardsDir == "" {
		c.Output.CardsDir = "./cards"
	}
	if c.Output.PostersDir == "" {
		c.Output.PostersDir = "./posters"
	}
	if c.Output.PosterWorkers == 0 {
		c.Output.PosterWorkers = 4
	}

	var err error
	for _, p := range []*string{&c.Cache.Path, &c.Output.CardsDir, &c.Output.PostersDir} {
		if *p, err = ExpandHome(*p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validate() error {
	if c.TMDB.MaxAttempts < 1 {
		return fmt.Errorf("tmdb.max_attempts must be at least 1")
	}
	if c.TMDB.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("tmdb.request_timeout_seconds must not be negative")
	}

	switch c.Translation.Engine {
	case EngineStub:
	case EngineLibre:
		if c.Translation.ServerURL == "" {
			return fmt.Errorf("translation.server_url is required for the %s engine", EngineLibre)
		}
	default:
		return fmt.Errorf("unknown translation engine %q (want %s or %s)", c.Translation.Engine, EngineLibre, EngineStub)
	}

	if c.Translation.SmoothingMs < 0 || c.Translation.WatchdogSeconds < 0 {
		return fmt.Errorf("translation timings must not be negative")
	}
	if c.Translation.TranslatorCacheSize < 0 {
		return fmt.Errorf("translation.translator_cache_size must not be negative")
	}
	if c.Output.PosterWorkers < 0 {
		return fmt.Errorf("output.poster_workers must not be negative")
	}
	return nil
}

// RequireAPIKey reports an error when no usable TMDB API key is configured.
func (c *Config) RequireAPIKey() error {
	if c.TMDB.APIKey == "" || c.TMDB.APIKey == "your_api_key_here" {
		return fmt.Errorf("TMDB API key is required. Get one from https://www.themoviedb.org/settings/api")
	}
	return nil
}

// RequestTimeout returns the TMDB request timeout; zero means none.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.TMDB.RequestTimeoutSeconds) * time.Second
}

// SmoothingInterval returns the downloading flag smoothing delay.
func (c *Config) SmoothingInterval() time.Duration {
	return time.Duration(c.Translation.SmoothingMs) * time.Millisecond
}

// WatchdogTimeout returns the model download watchdog timeout.
func (c *Config) WatchdogTimeout() time.Duration {
	return time.Duration(c.Translation.WatchdogSeconds) * time.Second
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/marco/myflix/internal/retry"
)

const (
	tmdbAPIBaseURL   = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	posterSize       = "w500"
)

// ErrMovieNotFound is returned when a movie is not found by ID
var ErrMovieNotFound = errors.New("movie not found")

// RetryLogFunc is a callback for logging retry attempts
type RetryLogFunc func(attempt int, maxAttempts int, backoff time.Duration, err error)

// Client represents a TMDB API client
type Client struct {
	apiKey         string
	language       string
	baseURL        string
	imageBaseURL   string
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	retryLogFunc   RetryLogFunc
}

// ClientConfig holds configuration for the TMDB client
type ClientConfig struct {
	APIKey           string
	Language         string
	BaseURL          string
	ImageBaseURL     string
	RequestTimeout   time.Duration // zero means no timeout
	MaxAttempts      int
	InitialBackoffMs int
	RetryLogFunc     RetryLogFunc
	HTTPClient       *http.Client
}

// NewClient creates a new TMDB API client
func NewClient(apiKey string, language string) *Client {
	return NewClientWithConfig(ClientConfig{
		APIKey:   apiKey,
		Language: language,
	})
}

// NewClientWithConfig creates a new TMDB API client with full configuration
func NewClientWithConfig(cfg ClientConfig) *Client {
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = tmdbAPIBaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = tmdbImageBaseURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoffMs <= 0 {
		cfg.InitialBackoffMs = 1000
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{
		apiKey:         cfg.APIKey,
		language:       cfg.Language,
		baseURL:        cfg.BaseURL,
		imageBaseURL:   cfg.ImageBaseURL,
		httpClient:     httpClient,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: time.Duration(cfg.InitialBackoffMs) * time.Millisecond,
		retryLogFunc:   cfg.RetryLogFunc,
	}
}

// doRequestWithRetry executes an HTTP GET request with retry logic.
// The returned response always has a 2xx status.
func (c *Client) doRequestWithRetry(ctx context.Context, requestURL string) (*http.Response, error) {
	var resp *http.Response
	attempt := 0

	err := retry.Retry(ctx, func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		r, err := c.httpClient.Do(req)
		if err == nil && (r.StatusCode < 200 || r.StatusCode > 299) {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 4096))
			r.Body.Close()
			err = &retry.HTTPStatusError{Service: "TMDB", StatusCode: r.StatusCode, Body: string(body)}
		}
		if err != nil {
			if c.retryLogFunc != nil && attempt < c.maxAttempts && (retry.IsRetryable(err) || retry.IsRateLimited(err)) {
				backoff := c.initialBackoff * time.Duration(1<<(attempt-1))
				if retry.IsRateLimited(err) {
					backoff *= 2
				}
				c.retryLogFunc(attempt, c.maxAttempts, backoff, err)
			}
			return err
		}

		resp = r
		return nil
	}, c.maxAttempts, c.initialBackoff)

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("language", c.language)

	resp, err := c.doRequestWithRetry(ctx, fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}

// GetPopularMovies fetches the first page of popular movies
func (c *Client) GetPopularMovies(ctx context.Context) ([]Movie, error) {
	var popular PopularResponse
	if err := c.getJSON(ctx, "/movie/popular", &popular); err != nil {
		return nil, fmt.Errorf("failed to get popular movies: %w", err)
	}
	return popular.Results, nil
}

// GetMovieDetail fetches a movie by its TMDB ID
func (c *Client) GetMovieDetail(ctx context.Context, tmdbID int) (*Movie, error) {
	var movie Movie
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", tmdbID), &movie); err != nil {
		var statusErr *retry.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("movie %d: %w", tmdbID, ErrMovieNotFound)
		}
		return nil, fmt.Errorf("failed to get movie details: %w", err)
	}
	return &movie, nil
}

// PosterURL returns the w500 image URL for a poster path
func (c *Client) PosterURL(posterPath string) string {
	return PosterURL(c.imageBaseURL, posterPath)
}

// PosterURL joins an image base URL, the poster size and a poster path.
func PosterURL(imageBaseURL, posterPath string) string {
	if imageBaseURL == "" {
		imageBaseURL = tmdbImageBaseURL
	}
	return fmt.Sprintf("%s/%s%s", imageBaseURL, posterSize, posterPath)
}

// DownloadPoster downloads a poster from TMDB to a local path and returns
// the number of bytes written
func (c *Client) DownloadPoster(ctx context.Context, posterPath string, outputPath string) (int64, error) {
	if posterPath == "" {
		return 0, fmt.Errorf("poster path is empty")
	}

	resp, err := c.doRequestWithRetry(ctx, c.PosterURL(posterPath))
	if err != nil {
		return 0, fmt.Errorf("failed to download poster: %w", err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	n, err := io.Copy(outFile, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to write poster: %w", err)
	}

	return n, nil
}

package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/marco/myflix/internal/retry"
)

// LibreConfig holds configuration for a LibreTranslate-compatible server.
type LibreConfig struct {
	BaseURL          string
	APIKey           string
	MaxAttempts      int
	InitialBackoffMs int
	HTTPClient       *http.Client
}

type libreLanguage struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Targets []string `json:"targets"`
}

type libreTranslateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreTranslateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// LibreEngine translates through a LibreTranslate-compatible HTTP API.
// A "model download" confirms with the server that the pair is served.
type LibreEngine struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	maxAttempts    int
	initialBackoff time.Duration

	mu        sync.RWMutex
	languages []libreLanguage
}

// NewLibreEngine creates an engine and fetches the server's language list.
func NewLibreEngine(ctx context.Context, cfg LibreConfig) (*LibreEngine, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("translation server URL is required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoffMs <= 0 {
		cfg.InitialBackoffMs = 500
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	e := &LibreEngine{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		httpClient:     httpClient,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: time.Duration(cfg.InitialBackoffMs) * time.Millisecond,
	}
	if err := e.refreshLanguages(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Languages returns the codes the server offers.
func (e *LibreEngine) Languages() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	codes := make([]string, 0, len(e.languages))
	for _, l := range e.languages {
		codes = append(codes, l.Code)
	}
	return codes
}

// NewTranslator creates a translator for opts.
func (e *LibreEngine) NewTranslator(opts Options) Translator {
	return &libreTranslator{engine: e, opts: opts}
}

func (e *LibreEngine) refreshLanguages(ctx context.Context) error {
	var langs []libreLanguage
	err := retry.Retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/languages", nil)
		if err != nil {
			return err
		}
		return e.do(req, &langs)
	}, e.maxAttempts, e.initialBackoff)
	if err != nil {
		return fmt.Errorf("failed to list translation languages: %w", err)
	}

	e.mu.Lock()
	e.languages = langs
	e.mu.Unlock()
	return nil
}

func (e *LibreEngine) supportsPair(opts Options) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, l := range e.languages {
		if l.Code == opts.Source {
			return slices.Contains(l.Targets, opts.Target)
		}
	}
	return false
}

func (e *LibreEngine) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &retry.HTTPStatusError{Service: "translation", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type libreTranslator struct {
	engine *LibreEngine
	opts   Options

	mu     sync.Mutex
	ready  bool
	closed bool
}

func (t *libreTranslator) DownloadModelIfNeeded(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTranslatorClosed
	}
	if t.ready {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.engine.refreshLanguages(ctx); err != nil {
		return err
	}
	if !t.engine.supportsPair(t.opts) {
		return fmt.Errorf("%s: %w", t.opts, ErrUnsupportedPair)
	}

	t.mu.Lock()
	t.ready = true
	t.mu.Unlock()
	return nil
}

func (t *libreTranslator) Translate(ctx context.Context, text string) (string, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return "", ErrTranslatorClosed
	}

	payload, err := json.Marshal(libreTranslateRequest{
		Q:      text,
		Source: t.opts.Source,
		Target: t.opts.Target,
		Format: "text",
		APIKey: t.engine.apiKey,
	})
	if err != nil {
		return "", err
	}

	var out libreTranslateResponse
	err = retry.Retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.engine.baseURL+"/translate", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		return t.engine.do(req, &out)
	}, t.engine.maxAttempts, t.engine.initialBackoff)
	if err != nil {
		return "", fmt.Errorf("failed to translate to %s: %w", t.opts.Target, err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("failed to translate to %s: %s", t.opts.Target, out.Error)
	}
	return out.TranslatedText, nil
}

func (t *libreTranslator) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

package coordinator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/marco/myflix/internal/translate"
)

// translatorCache is a fixed-capacity LRU of translators keyed by language
// pair. Evicted translators are closed inside the call that evicts them.
type translatorCache struct {
	engine translate.Engine

	mu  sync.Mutex
	lru *lru.Cache[translate.Options, translate.Translator]
	// purgeErrs collects close errors while purge runs; eviction errors
	// outside a purge are only logged.
	purging   bool
	purgeErrs []error
}

func newTranslatorCache(engine translate.Engine, size int) (*translatorCache, error) {
	tc := &translatorCache{engine: engine}
	cache, err := lru.NewWithEvict(size, tc.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create translator cache: %w", err)
	}
	tc.lru = cache
	return tc, nil
}

// onEvict runs with tc.mu held.
func (tc *translatorCache) onEvict(opts translate.Options, t translate.Translator) {
	slog.Debug("releasing translator", "pair", opts.String())
	if err := t.Close(); err != nil {
		slog.Warn("failed to close translator", "pair", opts.String(), "error", err)
		if tc.purging {
			tc.purgeErrs = append(tc.purgeErrs, fmt.Errorf("close translator %s: %w", opts, err))
		}
	}
}

// get returns the cached translator for opts, creating it on a miss.
func (tc *translatorCache) get(opts translate.Options) translate.Translator {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if t, ok := tc.lru.Get(opts); ok {
		return t
	}
	t := tc.engine.NewTranslator(opts)
	tc.lru.Add(opts, t)
	return t
}

// purge closes every cached translator and returns the close errors.
func (tc *translatorCache) purge() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.purging, tc.purgeErrs = true, nil
	tc.lru.Purge()
	err := errors.Join(tc.purgeErrs...)
	tc.purging, tc.purgeErrs = false, nil
	return err
}

func (tc *translatorCache) len() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.lru.Len()
}

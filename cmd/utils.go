package cmd

import (
	"fmt"

	"github.com/rubiojr/marketsearch/pkg/backend"
	"github.com/rubiojr/marketsearch/pkg/cache"
	"github.com/rubiojr/marketsearch/pkg/config"
	"github.com/rubiojr/marketsearch/pkg/search"
)

// loadValidConfig loads and validates the configuration file.
func loadValidConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// openCache opens the persistent cache when cache_dir is set, or an
// in-memory one otherwise.
func openCache(cfg *config.Config) (cache.Store, error) {
	opts := cache.Options{TTL: cfg.CacheTTL.Duration}
	if cfg.CacheDir == "" {
		return cache.NewMemory(opts), nil
	}
	store, err := cache.OpenSQLite(cfg.CacheDir, opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return store, nil
}

// newSearchService wires a search service from cfg. The returned store must
// be closed by the caller.
func newSearchService(cfg *config.Config, store cache.Store, onResults func(*search.Results)) (*search.Service, error) {
	client, err := backend.NewClient(backend.Options{
		BaseURL: cfg.BaseURL,
		Token:   cfg.APIToken,
		Timeout: cfg.Timeout.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}

	registry, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("building module registry: %w", err)
	}

	return search.NewService(client, registry, store, search.Options{
		SearchPath:       cfg.SearchPath,
		PrimaryLimit:     cfg.SearchLimit,
		PageSize:         cfg.PageSize,
		ProbeConcurrency: cfg.ProbeConcurrency,
		OnResults:        onResults,
	}), nil
}

// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the namespace for all environment variables, e.g.
// INKSHELF_BASE_URL or INKSHELF_SYNC_TOKEN.
const EnvPrefix = "INKSHELF_"

// Config holds every tunable of the service. Defaults mirror the
// constants the display client was tuned against.
type Config struct {
	Addr     string `koanf:"addr"`      // HTTP listen address
	PushAddr string `koanf:"push_addr"` // TCP push-hub listen address, empty disables

	// Ingestion source selection: catalog | feed | pushed | demo.
	Source string `koanf:"source"`

	// Feed source.
	BaseURL   string `koanf:"base_url"`   // Calibre-web root, e.g. http://localhost:8083
	LibraryID string `koanf:"library_id"` // usually "Calibre_Library"

	// Catalog source. Empty means "discover from candidate paths".
	CatalogPath string `koanf:"catalog_path"`

	// Pushed source: where the JSON snapshot lives.
	DataPath string `koanf:"data_path"`

	// Sync push auth. Token is compared exactly; TokenHash, when set,
	// is a bcrypt hash checked instead of the plaintext comparison.
	SyncToken     string `koanf:"sync_token"`
	SyncTokenHash string `koanf:"sync_token_hash"`

	BookLimit      int           `koanf:"book_limit"`      // default display limit
	MaxBookLimit   int           `koanf:"max_book_limit"`  // hard ceiling for requests
	RequestTimeout time.Duration `koanf:"request_timeout"` // per feed HTTP call
	CacheTTL       time.Duration `koanf:"cache_ttl"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// New returns the defaults Load layers the environment on top of.
func New() *Config {
	return &Config{
		Addr:           ":8080",
		PushAddr:       ":7070",
		Source:         "feed",
		BaseURL:        "http://localhost:8083",
		LibraryID:      "Calibre_Library",
		DataPath:       "data/library.json",
		BookLimit:      10,
		MaxBookLimit:   50,
		RequestTimeout: 10 * time.Second,
		CacheTTL:       5 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// Load builds a Config by layering INKSHELF_* env vars over defaults.
// Env keys map flat: INKSHELF_MAX_BOOK_LIMIT -> max_book_limit.
func Load() (*Config, error) {
	cfg := *New()

	k := koanf.New(".")
	provider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	switch c.Source {
	case "catalog", "feed", "pushed", "demo":
	default:
		return fmt.Errorf("unknown source %q (want catalog, feed, pushed or demo)", c.Source)
	}
	if c.BookLimit < 1 {
		c.BookLimit = 1
	}
	if c.MaxBookLimit < c.BookLimit {
		c.MaxBookLimit = c.BookLimit
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	return nil
}

// Package config loads the immutable runtime configuration for the
// retrieval core: required remote index connection settings plus the
// tunables governing timeouts, caching, embeddings, and ranking.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aman-cerp/retrieval-core/internal/errors"
)

// Config is populated once at startup from environment variables, with
// an optional local YAML overlay for development. It is never handed to
// callers in a partial or zero-value state: Load fails fast instead.
type Config struct {
	// IndexEndpoint, IndexAPIKey, and IndexName address the remote search
	// index backend. All three are required.
	IndexEndpoint string
	IndexAPIKey   string
	IndexName     string

	RESTTimeout     time.Duration
	IndexerTimeout  time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int

	EmbeddingDimensions int
	SemanticConfigName  string
	AdaptiveRanking     bool

	LogLevel string
}

const (
	defaultRESTTimeout         = 30 * time.Second
	defaultIndexerTimeout      = 300 * time.Second
	defaultCacheTTL            = 60 * time.Second
	defaultCacheMaxEntries     = 500
	defaultEmbeddingDimensions = 3072
	defaultSemanticConfigName  = "semantic-config"
	defaultLogLevel            = "info"
)

// devOverlay is the optional local-development YAML file read in addition
// to the environment. Unknown keys are rejected.
type devOverlay struct {
	RESTTimeoutSeconds    *int    `yaml:"rest_timeout_seconds"`
	IndexerTimeoutSeconds *int    `yaml:"indexer_timeout_seconds"`
	CacheTTLSeconds       *int    `yaml:"cache_ttl_seconds"`
	CacheMaxEntries       *int    `yaml:"cache_max_entries"`
	EmbeddingDimensions   *int    `yaml:"embedding_dimensions"`
	SemanticConfigName    *string `yaml:"semantic_config_name"`
	AdaptiveRanking       *bool   `yaml:"adaptive_ranking"`
	LogLevel              *string `yaml:"log_level"`
}

// Load builds a Config from the environment, then — if devConfigPath
// names a readable file — applies a strict YAML overlay on top of it.
// Required values (INDEX_ENDPOINT, INDEX_API_KEY, INDEX_NAME) must be
// set in the environment; the overlay cannot supply them. Load returns a
// ConfigError wrapped via internal/errors for any missing or malformed
// required value.
func Load(devConfigPath string) (*Config, error) {
	cfg := &Config{
		RESTTimeout:         defaultRESTTimeout,
		IndexerTimeout:      defaultIndexerTimeout,
		CacheTTL:            defaultCacheTTL,
		CacheMaxEntries:     defaultCacheMaxEntries,
		EmbeddingDimensions: defaultEmbeddingDimensions,
		SemanticConfigName:  defaultSemanticConfigName,
		AdaptiveRanking:     true,
		LogLevel:            defaultLogLevel,
	}

	cfg.IndexEndpoint = strings.TrimSpace(os.Getenv("INDEX_ENDPOINT"))
	cfg.IndexAPIKey = strings.TrimSpace(os.Getenv("INDEX_API_KEY"))
	cfg.IndexName = strings.TrimSpace(os.Getenv("INDEX_NAME"))

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if devConfigPath != "" {
		if err := cfg.applyDevOverlay(devConfigPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("REST_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return errors.NewConfigError("REST_TIMEOUT_SECONDS must be a positive integer", err)
		}
		c.RESTTimeout = d
	}
	if v := os.Getenv("INDEXER_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return errors.NewConfigError("INDEXER_TIMEOUT_SECONDS must be a positive integer", err)
		}
		c.IndexerTimeout = d
	}
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return errors.NewConfigError("CACHE_TTL_SECONDS must be a positive integer", err)
		}
		c.CacheTTL = d
	}
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errors.NewConfigError("CACHE_MAX_ENTRIES must be a positive integer", err)
		}
		c.CacheMaxEntries = n
	}
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errors.NewConfigError("EMBEDDING_DIMENSIONS must be a positive integer", err)
		}
		c.EmbeddingDimensions = n
	}
	if v := os.Getenv("SEMANTIC_CONFIG_NAME"); v != "" {
		c.SemanticConfigName = v
	}
	if v := os.Getenv("ADAPTIVE_RANKING"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NewConfigError("ADAPTIVE_RANKING must be a boolean", err)
		}
		c.AdaptiveRanking = b
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// applyDevOverlay reads a strict YAML file (unknown keys rejected) and
// overrides any tunable it sets. It never supplies the required
// connection fields.
func (c *Config) applyDevOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewConfigError(fmt.Sprintf("failed to read dev config %s", path), err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)

	var overlay devOverlay
	if err := dec.Decode(&overlay); err != nil {
		return errors.NewConfigError(fmt.Sprintf("failed to parse dev config %s", filepath.Clean(path)), err)
	}

	if overlay.RESTTimeoutSeconds != nil {
		c.RESTTimeout = time.Duration(*overlay.RESTTimeoutSeconds) * time.Second
	}
	if overlay.IndexerTimeoutSeconds != nil {
		c.IndexerTimeout = time.Duration(*overlay.IndexerTimeoutSeconds) * time.Second
	}
	if overlay.CacheTTLSeconds != nil {
		c.CacheTTL = time.Duration(*overlay.CacheTTLSeconds) * time.Second
	}
	if overlay.CacheMaxEntries != nil {
		c.CacheMaxEntries = *overlay.CacheMaxEntries
	}
	if overlay.EmbeddingDimensions != nil {
		c.EmbeddingDimensions = *overlay.EmbeddingDimensions
	}
	if overlay.SemanticConfigName != nil {
		c.SemanticConfigName = *overlay.SemanticConfigName
	}
	if overlay.AdaptiveRanking != nil {
		c.AdaptiveRanking = *overlay.AdaptiveRanking
	}
	if overlay.LogLevel != nil {
		c.LogLevel = *overlay.LogLevel
	}
	return nil
}

// Validate checks that every required value is present and every
// tunable is within a sane range, returning a ConfigError on the first
// violation.
func (c *Config) Validate() error {
	if c.IndexEndpoint == "" {
		return errors.NewConfigError("INDEX_ENDPOINT is required", nil)
	}
	if c.IndexAPIKey == "" {
		return errors.NewConfigError("INDEX_API_KEY is required", nil)
	}
	if c.IndexName == "" {
		return errors.NewConfigError("INDEX_NAME is required", nil)
	}
	if c.RESTTimeout <= 0 {
		return errors.NewConfigError("rest timeout must be positive", nil)
	}
	if c.IndexerTimeout <= 0 {
		return errors.NewConfigError("indexer timeout must be positive", nil)
	}
	if c.CacheTTL <= 0 {
		return errors.NewConfigError("cache ttl must be positive", nil)
	}
	if c.CacheMaxEntries <= 0 {
		return errors.NewConfigError("cache max entries must be positive", nil)
	}
	if c.EmbeddingDimensions <= 0 {
		return errors.NewConfigError("embedding dimensions must be positive", nil)
	}
	if c.SemanticConfigName == "" {
		return errors.NewConfigError("semantic config name must not be empty", nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return errors.NewConfigError(fmt.Sprintf("log level must be debug, info, warn, or error, got %q", c.LogLevel), nil)
	}

	return nil
}

func parseSeconds(v string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		if err == nil {
			err = fmt.Errorf("must be positive, got %d", n)
		}
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

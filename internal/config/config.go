// Package config provides configuration loading for QuranScope.
package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/QuranScope/core/corpus"
	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
	"github.com/FocuswithJustin/QuranScope/core/explain"
	"github.com/FocuswithJustin/QuranScope/core/reader"
	"github.com/FocuswithJustin/QuranScope/internal/logging"
)

// Data source kinds.
const (
	SourceDir    = "dir"
	SourceHTTP   = "http"
	SourceSQLite = "sqlite"
)

// Config is the complete QuranScope configuration.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Search  SearchConfig  `yaml:"search"`
	Explain ExplainConfig `yaml:"explain"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// DataConfig selects where corpus resources come from.
type DataConfig struct {
	// Source is dir, http or sqlite.
	Source string `yaml:"source"`
	// Location is a directory, a base URL or a database file, per Source.
	Location string `yaml:"location"`
	// TafsirEdition names the legacy per-verse tafsir directory.
	TafsirEdition string `yaml:"tafsir_edition"`
}

// SearchConfig tunes the search engines.
type SearchConfig struct {
	Lanes               int     `yaml:"lanes"`
	PageSize            int     `yaml:"page_size"`
	SuggestionLimit     int     `yaml:"suggestion_limit"`
	SuggestionThreshold float64 `yaml:"suggestion_threshold"`
}

// ExplainConfig configures the explanation service client.
type ExplainConfig struct {
	// Origin of the explanation service; empty disables explanations.
	Origin string `yaml:"origin"`
	Style  string `yaml:"style"`
	Length string `yaml:"length"`
	// Timeout bounds the wait for response headers. Streams themselves are
	// not time-limited.
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures `quranscope serve`.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Watch          bool          `yaml:"watch"`
	RateLimit      int           `yaml:"rate_limit"` // requests per minute, 0 disables
	RateBurst      int           `yaml:"rate_burst"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	APIKey         string        `yaml:"api_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() *Config {
	rc := reader.DefaultConfig()
	return &Config{
		Data: DataConfig{
			Source:        SourceDir,
			Location:      "data",
			TafsirEdition: corpus.DefaultTafsirName,
		},
		Search: SearchConfig{
			Lanes:               rc.Lanes,
			PageSize:            rc.PerPage,
			SuggestionLimit:     rc.SuggestionLimit,
			SuggestionThreshold: rc.SuggestionThreshold,
		},
		Explain: ExplainConfig{
			Origin:  "http://localhost:8000",
			Style:   string(explain.Balanced),
			Length:  string(explain.Short),
			Timeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Port:       8080,
			RateBurst:  10,
			SessionTTL: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case SourceDir, SourceHTTP, SourceSQLite:
	default:
		return qerrors.NewValidation("data.source", fmt.Sprintf("must be dir, http or sqlite, got %q", c.Data.Source))
	}
	if strings.TrimSpace(c.Data.Location) == "" {
		return qerrors.NewValidation("data.location", "is required")
	}
	if c.Search.Lanes < 1 || c.Search.Lanes > 64 {
		return qerrors.NewValidation("search.lanes", fmt.Sprintf("must be between 1 and 64, got %d", c.Search.Lanes))
	}
	if c.Search.PageSize < 1 {
		return qerrors.NewValidation("search.page_size", "must be positive")
	}
	if c.Search.SuggestionLimit < 1 {
		return qerrors.NewValidation("search.suggestion_limit", "must be positive")
	}
	if c.Search.SuggestionThreshold <= 0 || c.Search.SuggestionThreshold > 1 {
		return qerrors.NewValidation("search.suggestion_threshold", "must be in (0, 1]")
	}
	if err := c.ExplainOptions().Validate(); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return qerrors.NewValidation("server.port", fmt.Sprintf("out of range: %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return qerrors.NewValidation("server.rate_limit", "must not be negative")
	}
	if c.Server.APIKey != "" && len(c.Server.APIKey) < 16 {
		return qerrors.NewValidation("server.api_key", fmt.Sprintf("must be at least 16 characters (got %d)", len(c.Server.APIKey)))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return qerrors.NewValidation("log.level", err.Error())
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return qerrors.NewValidation("log.format", err.Error())
	}
	return nil
}

// ExplainOptions returns the default explanation options.
func (c *Config) ExplainOptions() explain.Options {
	return explain.Options{Style: explain.Style(c.Explain.Style), Length: explain.Length(c.Explain.Length)}.Normalize()
}

// Reader returns the session settings.
func (c *Config) Reader() reader.Config {
	return reader.Config{
		Lanes:               c.Search.Lanes,
		PerPage:             c.Search.PageSize,
		SuggestionLimit:     c.Search.SuggestionLimit,
		SuggestionThreshold: c.Search.SuggestionThreshold,
		TafsirEdition:       c.Data.TafsirEdition,
		Explain:             c.ExplainOptions(),
	}
}

// ExplainClient returns a client for the configured service, or nil when no
// origin is configured.
func (c *Config) ExplainClient() (*explain.Client, error) {
	if strings.TrimSpace(c.Explain.Origin) == "" {
		return nil, nil
	}
	var hc *http.Client
	if c.Explain.Timeout > 0 {
		hc = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: c.Explain.Timeout,
		}}
	}
	return explain.NewClient(c.Explain.Origin, hc)
}

// LoadFromFile applies a YAML file over c. Keys absent from the file keep
// their current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return qerrors.NewParse("YAML", path, err)
	}
	return nil
}

// SaveToFile writes c as YAML, creating parent directories.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

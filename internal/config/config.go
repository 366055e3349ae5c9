// Package config loads the search proxy's configuration in order of
// increasing precedence: hardcoded defaults, an optional YAML file, then
// environment variables (see spec §6).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Weights configures per-variant-kind ranking weights (spec §4.E/§4.G).
type Weights struct {
	Original      float64 `yaml:"original" json:"original"`
	Tokenised     float64 `yaml:"tokenised" json:"tokenised"`
	CompoundSplit float64 `yaml:"compound_split" json:"compound_split"`
	FallbackChar  float64 `yaml:"fallback_char" json:"fallback_char"`
}

// TimeoutsConfig configures the per-stage timeouts of spec §5.
type TimeoutsConfig struct {
	QueryProcessMS  int `yaml:"query_process_ms" json:"query_process_ms"`
	VariantMS       int `yaml:"variant_ms" json:"variant_ms"`
	SearchMS        int `yaml:"search_ms" json:"search_ms"`
	RequestDeadlineMS int `yaml:"request_deadline_ms" json:"request_deadline_ms"`
}

// BackendConfig configures the connection to the external search engine.
type BackendConfig struct {
	URL       string `yaml:"url" json:"url"`
	APIKey    string `yaml:"api_key" json:"-"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	QueueMax  int    `yaml:"queue_max" json:"queue_max"`
}

// SegmenterConfig selects the Thai segmenter engine chain (spec §4.C).
type SegmenterConfig struct {
	Primary       string   `yaml:"primary" json:"primary"`
	Fallbacks     []string `yaml:"fallbacks" json:"fallbacks"`
	TimeoutMS     int      `yaml:"timeout_ms" json:"timeout_ms"`
}

// DictionaryConfig configures the compound dictionary source (spec §4.A).
type DictionaryConfig struct {
	Path                string  `yaml:"path" json:"path"`
	MinSplitConfidence  float64 `yaml:"min_split_confidence" json:"min_split_confidence"`
}

// AuthConfig configures the minimum API-key auth hook (spec §6).
type AuthConfig struct {
	Required bool   `yaml:"required" json:"required"`
	APIKey   string `yaml:"api_key" json:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr  string   `yaml:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
	LogLevel    string   `yaml:"log_level" json:"log_level"`
}

// TelemetryConfig configures the query-level telemetry store (spec §4.J).
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	DBPath  string `yaml:"db_path" json:"db_path"`
}

// MCPConfig configures the optional stdio MCP tool surface (spec §10.1).
// Disabled by default: stdio MCP and HTTP serving are mutually exclusive
// process modes, so enabling this replaces the HTTP listener rather than
// running alongside it.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Config is the complete search proxy configuration, covering every
// environment variable enumerated in spec §6.
type Config struct {
	Server     ServerConfig     `yaml:"server" json:"server"`
	Backend    BackendConfig    `yaml:"backend" json:"backend"`
	Dictionary DictionaryConfig `yaml:"dictionary" json:"dictionary"`
	Segmenter  SegmenterConfig  `yaml:"segmenter" json:"segmenter"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts" json:"timeouts"`
	Weights    Weights          `yaml:"weights" json:"weights"`
	MaxVariants int             `yaml:"max_variants" json:"max_variants"`
	Auth       AuthConfig       `yaml:"auth" json:"auth"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" json:"telemetry"`
	MCP        MCPConfig        `yaml:"mcp" json:"mcp"`
}

// NewConfig returns a Config populated with the spec §6 defaults.
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  "0.0.0.0:8000",
			CORSOrigins: nil,
			LogLevel:    "info",
		},
		Backend: BackendConfig{
			URL:      "",
			APIKey:   "",
			PoolSize: 10,
			QueueMax: 32,
		},
		Dictionary: DictionaryConfig{
			Path:               "./dictionaries/thai_compounds.json",
			MinSplitConfidence: 0.5,
		},
		Segmenter: SegmenterConfig{
			Primary:   "primary",
			Fallbacks: []string{"fallback_a", "fallback_b"},
			TimeoutMS: 30,
		},
		Timeouts: TimeoutsConfig{
			QueryProcessMS:    20,
			VariantMS:         2000,
			SearchMS:          5000,
			RequestDeadlineMS: 10000,
		},
		Weights: Weights{
			Original:      1.0,
			Tokenised:     1.2,
			CompoundSplit: 0.7,
			FallbackChar:  0.4,
		},
		MaxVariants: 5,
		Auth: AuthConfig{
			Required: false,
			APIKey:   "",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			DBPath:  "",
		},
		MCP: MCPConfig{
			Enabled: false,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file at path (if
// non-empty and it exists), then environment variable overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Server.ListenAddr != "" {
		c.Server.ListenAddr = other.Server.ListenAddr
	}
	if len(other.Server.CORSOrigins) > 0 {
		c.Server.CORSOrigins = other.Server.CORSOrigins
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Backend.URL != "" {
		c.Backend.URL = other.Backend.URL
	}
	if other.Backend.APIKey != "" {
		c.Backend.APIKey = other.Backend.APIKey
	}
	if other.Backend.PoolSize != 0 {
		c.Backend.PoolSize = other.Backend.PoolSize
	}
	if other.Backend.QueueMax != 0 {
		c.Backend.QueueMax = other.Backend.QueueMax
	}

	if other.Dictionary.Path != "" {
		c.Dictionary.Path = other.Dictionary.Path
	}
	if other.Dictionary.MinSplitConfidence != 0 {
		c.Dictionary.MinSplitConfidence = other.Dictionary.MinSplitConfidence
	}

	if other.Segmenter.Primary != "" {
		c.Segmenter.Primary = other.Segmenter.Primary
	}
	if len(other.Segmenter.Fallbacks) > 0 {
		c.Segmenter.Fallbacks = other.Segmenter.Fallbacks
	}
	if other.Segmenter.TimeoutMS != 0 {
		c.Segmenter.TimeoutMS = other.Segmenter.TimeoutMS
	}

	if other.Timeouts.QueryProcessMS != 0 {
		c.Timeouts.QueryProcessMS = other.Timeouts.QueryProcessMS
	}
	if other.Timeouts.VariantMS != 0 {
		c.Timeouts.VariantMS = other.Timeouts.VariantMS
	}
	if other.Timeouts.SearchMS != 0 {
		c.Timeouts.SearchMS = other.Timeouts.SearchMS
	}
	if other.Timeouts.RequestDeadlineMS != 0 {
		c.Timeouts.RequestDeadlineMS = other.Timeouts.RequestDeadlineMS
	}

	if other.Weights.Original != 0 {
		c.Weights.Original = other.Weights.Original
	}
	if other.Weights.Tokenised != 0 {
		c.Weights.Tokenised = other.Weights.Tokenised
	}
	if other.Weights.CompoundSplit != 0 {
		c.Weights.CompoundSplit = other.Weights.CompoundSplit
	}
	if other.Weights.FallbackChar != 0 {
		c.Weights.FallbackChar = other.Weights.FallbackChar
	}

	if other.MaxVariants != 0 {
		c.MaxVariants = other.MaxVariants
	}

	if other.Auth.Required {
		c.Auth.Required = other.Auth.Required
	}
	if other.Auth.APIKey != "" {
		c.Auth.APIKey = other.Auth.APIKey
	}

	if other.Telemetry.DBPath != "" {
		c.Telemetry.DBPath = other.Telemetry.DBPath
	}

	if other.MCP.Enabled {
		c.MCP.Enabled = true
	}
}

// applyEnvOverrides applies the environment variables enumerated in spec §6.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}

	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("BACKEND_API_KEY"); v != "" {
		c.Backend.APIKey = v
	}
	if v := os.Getenv("BACKEND_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Backend.PoolSize = n
		}
	}
	if v := os.Getenv("BACKEND_QUEUE_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Backend.QueueMax = n
		}
	}

	if v := os.Getenv("DICT_PATH"); v != "" {
		c.Dictionary.Path = v
	}

	if v := os.Getenv("SEGMENTER_PRIMARY"); v != "" {
		c.Segmenter.Primary = v
	}
	if v := os.Getenv("SEGMENTER_FALLBACKS"); v != "" {
		c.Segmenter.Fallbacks = strings.Split(v, ",")
	}

	if v := os.Getenv("MAX_VARIANTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxVariants = n
		}
	}

	if v := os.Getenv("QUERY_PROCESS_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Timeouts.QueryProcessMS = n
		}
	}
	if v := os.Getenv("VARIANT_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Timeouts.VariantMS = n
		}
	}
	if v := os.Getenv("SEARCH_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Timeouts.SearchMS = n
		}
	}
	if v := os.Getenv("REQUEST_DEADLINE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Timeouts.RequestDeadlineMS = n
		}
	}

	if v := os.Getenv("W_ORIGINAL"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.Weights.Original = f
		}
	}
	if v := os.Getenv("W_TOKENISED"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.Weights.Tokenised = f
		}
	}
	if v := os.Getenv("W_COMPOUND_SPLIT"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.Weights.CompoundSplit = f
		}
	}
	if v := os.Getenv("W_FALLBACK_CHAR"); v != "" {
		if f, err := parseFloat64(v); err == nil {
			c.Weights.FallbackChar = f
		}
	}

	if v := os.Getenv("API_KEY_REQUIRED"); v != "" {
		c.Auth.Required = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.Auth.APIKey = v
	}

	if v := os.Getenv("TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("TELEMETRY_DB_PATH"); v != "" {
		c.Telemetry.DBPath = v
	}

	if v := os.Getenv("MCP_ENABLED"); v != "" {
		c.MCP.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate checks invariants that must hold regardless of source.
func (c *Config) Validate() error {
	if c.Auth.Required && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.required is true but api_key is empty")
	}
	if c.Backend.PoolSize <= 0 {
		return fmt.Errorf("backend.pool_size must be positive, got %d", c.Backend.PoolSize)
	}
	if c.Backend.QueueMax <= 0 {
		return fmt.Errorf("backend.queue_max must be positive, got %d", c.Backend.QueueMax)
	}
	if c.MaxVariants <= 0 {
		return fmt.Errorf("max_variants must be positive, got %d", c.MaxVariants)
	}
	for _, w := range []struct {
		name string
		val  float64
	}{
		{"weights.original", c.Weights.Original},
		{"weights.tokenised", c.Weights.Tokenised},
		{"weights.compound_split", c.Weights.CompoundSplit},
		{"weights.fallback_char", c.Weights.FallbackChar},
	} {
		if w.val <= 0 || w.val > 2 {
			return fmt.Errorf("%s must be in (0, 2], got %f", w.name, w.val)
		}
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be debug, info, warn, or error, got %s", c.Server.LogLevel)
	}
	return nil
}

// QueryProcessTimeout returns the query-processing timeout as a duration.
func (t TimeoutsConfig) QueryProcessTimeout() time.Duration {
	return time.Duration(t.QueryProcessMS) * time.Millisecond
}

// VariantTimeout returns the per-variant timeout as a duration.
func (t TimeoutsConfig) VariantTimeout() time.Duration {
	return time.Duration(t.VariantMS) * time.Millisecond
}

// SearchTimeout returns the global search timeout as a duration.
func (t TimeoutsConfig) SearchTimeout() time.Duration {
	return time.Duration(t.SearchMS) * time.Millisecond
}

// RequestDeadline returns the overall request deadline as a duration.
func (t TimeoutsConfig) RequestDeadline() time.Duration {
	return time.Duration(t.RequestDeadlineMS) * time.Millisecond
}

// SegmenterTimeout returns the per-segmenter-variant timeout as a duration.
func (s SegmenterConfig) SegmenterTimeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}


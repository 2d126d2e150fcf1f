// Package config provides configuration loading and management for
// ScholarForge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hassan-khan-web/ScholarForge/council"
	"github.com/hassan-khan-web/ScholarForge/evidence"
	"github.com/hassan-khan-web/ScholarForge/formats"
	"github.com/hassan-khan-web/ScholarForge/llm"
	"github.com/hassan-khan-web/ScholarForge/model"
	"github.com/hassan-khan-web/ScholarForge/search"
	"github.com/hassan-khan-web/ScholarForge/source"
	"github.com/hassan-khan-web/ScholarForge/source/parser"
)

// Config represents the complete ScholarForge configuration.
// API keys are never read from here, only from the environment.
type Config struct {
	Models   *model.RegistryConfig `yaml:"models"`
	Gateway  GatewayConfig         `yaml:"gateway"`
	Search   SearchConfig          `yaml:"search"`
	Council  council.Config        `yaml:"council"`
	Pipeline PipelineConfig        `yaml:"pipeline"`
	Storage  StorageConfig         `yaml:"storage"`
	NATS     NATSConfig            `yaml:"nats"`
	Metrics  MetricsConfig         `yaml:"metrics"`
}

// GatewayConfig configures the model gateway retry policy.
type GatewayConfig struct {
	// MaxAttempts caps provider calls per logical call (default: 3)
	MaxAttempts int `yaml:"max_attempts"`
	// RateLimitRetries is how often a 429'd model is retried (default: 1)
	RateLimitRetries int `yaml:"rate_limit_retries"`
	// BackoffBase is the first backoff, e.g. "2s"
	BackoffBase string `yaml:"backoff_base"`
	// MaxBackoff caps the exponential backoff, e.g. "30s"
	MaxBackoff string `yaml:"max_backoff"`
	// CallTimeout bounds one provider call, e.g. "120s"
	CallTimeout string `yaml:"call_timeout"`
}

// SearchConfig configures web search and page fetching.
type SearchConfig struct {
	// Provider is auto, tavily, serpapi or duckduckgo
	Provider        string `yaml:"provider"`
	ResultCap       int    `yaml:"result_cap"`
	ScrapeCap       int    `yaml:"scrape_cap"`
	GapResultCap    int    `yaml:"gap_result_cap"`
	VerifyResultCap int    `yaml:"verify_result_cap"`
	ExtractCap      int    `yaml:"extract_cap"`
	Timeout         string `yaml:"timeout"`
	FetchTimeout    string `yaml:"fetch_timeout"`
	// AllowPrivate lets the fetcher reach loopback and private networks
	AllowPrivate bool `yaml:"allow_private"`
}

// PipelineConfig configures report generation defaults.
type PipelineConfig struct {
	Format       string        `yaml:"format"`
	Pages        int           `yaml:"pages"`
	UseConsensus bool          `yaml:"use_consensus"`
	DocumentsCap int           `yaml:"documents_cap"`
	Documents    parser.Limits `yaml:"documents"`
}

// StorageConfig configures the report archive.
type StorageConfig struct {
	Disabled bool   `yaml:"disabled"`
	Path     string `yaml:"path"`
}

// NATSConfig configures progress publishing. Empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Models: model.DefaultRegistryConfig(),
		Gateway: GatewayConfig{
			MaxAttempts:      3,
			RateLimitRetries: 1,
			BackoffBase:      "2s",
			MaxBackoff:       "30s",
			CallTimeout:      "120s",
		},
		Search: SearchConfig{
			Provider:        search.ProviderAuto,
			ResultCap:       5,
			ScrapeCap:       4,
			GapResultCap:    2,
			VerifyResultCap: 2,
			ExtractCap:      search.DefaultExtractCap,
			Timeout:         "15s",
			FetchTimeout:    "10s",
		},
		Council: council.DefaultConfig(),
		Pipeline: PipelineConfig{
			Format:       formats.LiteratureReview,
			Pages:        10,
			DocumentsCap: source.DefaultDocumentsCap,
			Documents:    parser.DefaultLimits(),
		},
		Storage: StorageConfig{
			Path: defaultStoragePath(),
		},
		NATS: NATSConfig{
			SubjectPrefix: "scholarforge.progress",
		},
	}
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "scholarforge.db"
	}
	return filepath.Join(home, ".local", "share", "scholarforge", "reports.db")
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Models == nil {
		return fmt.Errorf("models is required")
	}
	if err := model.NewFromConfig(c.Models).Validate(); err != nil {
		return fmt.Errorf("models: %w", err)
	}
	if c.Gateway.MaxAttempts < 1 {
		return fmt.Errorf("gateway.max_attempts must be at least 1")
	}
	for name, v := range map[string]string{
		"gateway.backoff_base": c.Gateway.BackoffBase,
		"gateway.max_backoff":  c.Gateway.MaxBackoff,
		"gateway.call_timeout": c.Gateway.CallTimeout,
		"search.timeout":       c.Search.Timeout,
		"search.fetch_timeout": c.Search.FetchTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if !validProvider(c.Search.Provider) {
		return fmt.Errorf("search.provider must be one of %s", strings.Join(search.Names(), ", "))
	}
	if c.Council.ApproveScore < 0 || c.Council.ApproveScore > 100 {
		return fmt.Errorf("council.approve_score must be between 0 and 100")
	}
	if c.Pipeline.Pages < 0 {
		return fmt.Errorf("pipeline.pages must not be negative")
	}
	return nil
}

func validProvider(name string) bool {
	if name == "" {
		return true
	}
	for _, n := range search.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// RetryConfig converts the gateway section to the llm retry policy.
func (c *Config) RetryConfig() llm.RetryConfig {
	rc := llm.DefaultRetryConfig()
	if c.Gateway.MaxAttempts > 0 {
		rc.MaxAttempts = c.Gateway.MaxAttempts
	}
	if c.Gateway.RateLimitRetries > 0 {
		rc.RateLimitRetries = c.Gateway.RateLimitRetries
	}
	rc.BackoffBase = parseDurationOrDefault(c.Gateway.BackoffBase, rc.BackoffBase)
	rc.MaxBackoff = parseDurationOrDefault(c.Gateway.MaxBackoff, rc.MaxBackoff)
	return rc
}

// GetCallTimeout returns the per-call provider timeout.
func (c *Config) GetCallTimeout() time.Duration {
	return parseDurationOrDefault(c.Gateway.CallTimeout, 120*time.Second)
}

// SearchOptions returns the provider options.
func (c *Config) SearchOptions() search.Options {
	opts := search.DefaultOptions()
	opts.Timeout = parseDurationOrDefault(c.Search.Timeout, opts.Timeout)
	return opts
}

// FetchConfig returns the page fetcher settings.
func (c *Config) FetchConfig() search.FetchConfig {
	fc := search.DefaultFetchConfig()
	fc.Timeout = parseDurationOrDefault(c.Search.FetchTimeout, fc.Timeout)
	if c.Search.ExtractCap > 0 {
		fc.ExtractCap = c.Search.ExtractCap
	}
	fc.AllowPrivate = c.Search.AllowPrivate
	return fc
}

// EvidenceConfig returns the collector caps.
func (c *Config) EvidenceConfig() evidence.Config {
	return evidence.Config{
		ResultCap:       c.Search.ResultCap,
		ScrapeCap:       c.Search.ScrapeCap,
		GapResultCap:    c.Search.GapResultCap,
		VerifyResultCap: c.Search.VerifyResultCap,
	}
}

func parseDurationOrDefault(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// LoadFromFile loads one YAML file. Unset fields stay zero so the result can
// be merged over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// Merge merges another config into this one (other takes precedence for
// non-zero values). A models section replaces the registry as a whole.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Models != nil {
		c.Models = other.Models
	}

	// Gateway
	if other.Gateway.MaxAttempts != 0 {
		c.Gateway.MaxAttempts = other.Gateway.MaxAttempts
	}
	if other.Gateway.RateLimitRetries != 0 {
		c.Gateway.RateLimitRetries = other.Gateway.RateLimitRetries
	}
	mergeString(&c.Gateway.BackoffBase, other.Gateway.BackoffBase)
	mergeString(&c.Gateway.MaxBackoff, other.Gateway.MaxBackoff)
	mergeString(&c.Gateway.CallTimeout, other.Gateway.CallTimeout)

	// Search
	mergeString(&c.Search.Provider, other.Search.Provider)
	mergeInt(&c.Search.ResultCap, other.Search.ResultCap)
	mergeInt(&c.Search.ScrapeCap, other.Search.ScrapeCap)
	mergeInt(&c.Search.GapResultCap, other.Search.GapResultCap)
	mergeInt(&c.Search.VerifyResultCap, other.Search.VerifyResultCap)
	mergeInt(&c.Search.ExtractCap, other.Search.ExtractCap)
	mergeString(&c.Search.Timeout, other.Search.Timeout)
	mergeString(&c.Search.FetchTimeout, other.Search.FetchTimeout)
	if other.Search.AllowPrivate {
		c.Search.AllowPrivate = true
	}

	// Council
	mergeInt(&c.Council.MaxCycles, other.Council.MaxCycles)
	mergeInt(&c.Council.ApproveScore, other.Council.ApproveScore)
	mergeInt(&c.Council.MinDraftLength, other.Council.MinDraftLength)
	mergeInt(&c.Council.MaxClaims, other.Council.MaxClaims)
	if other.Council.StrictVerdicts {
		c.Council.StrictVerdicts = true
	}

	// Pipeline
	mergeString(&c.Pipeline.Format, other.Pipeline.Format)
	mergeInt(&c.Pipeline.Pages, other.Pipeline.Pages)
	mergeInt(&c.Pipeline.DocumentsCap, other.Pipeline.DocumentsCap)
	mergeInt(&c.Pipeline.Documents.MaxPDFPages, other.Pipeline.Documents.MaxPDFPages)
	mergeInt(&c.Pipeline.Documents.MaxPDFChars, other.Pipeline.Documents.MaxPDFChars)
	mergeInt(&c.Pipeline.Documents.MaxTextChars, other.Pipeline.Documents.MaxTextChars)
	if other.Pipeline.UseConsensus {
		c.Pipeline.UseConsensus = true
	}

	// Storage
	mergeString(&c.Storage.Path, other.Storage.Path)
	if other.Storage.Disabled {
		c.Storage.Disabled = true
	}

	// NATS
	mergeString(&c.NATS.URL, other.NATS.URL)
	mergeString(&c.NATS.SubjectPrefix, other.NATS.SubjectPrefix)

	// Metrics
	mergeString(&c.Metrics.Addr, other.Metrics.Addr)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

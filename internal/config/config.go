// Package config loads lccn-finder settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/lccn-finder/internal/browser/httpdom"
	"github.com/lehigh-university-libraries/lccn-finder/internal/catalog"
	"github.com/lehigh-university-libraries/lccn-finder/internal/lccn"
	"github.com/lehigh-university-libraries/lccn-finder/internal/metadata"
)

// Config holds every setting of a run.
type Config struct {
	InputFile string `yaml:"input_file"`
	Verify    bool   `yaml:"verify_isbn"`

	PageLoadTimeout   time.Duration `yaml:"page_load_timeout"`
	SearchTimeout     time.Duration `yaml:"search_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent"`

	SearchURL      string            `yaml:"loc_search_url"`
	DetailURL      string            `yaml:"lccn_base_url"`
	OpenLibraryURL string            `yaml:"openlibrary_url"`
	Selectors      catalog.Selectors `yaml:"selectors"`

	MetadataProvider string `yaml:"metadata_provider"`
	MetadataModel    string `yaml:"metadata_model"`
	OllamaURL        string `yaml:"ollama_url"`
	OpenAIAPIKey     string `yaml:"-"`
	GeminiAPIKey     string `yaml:"-"`

	JournalDB      string `yaml:"journal_db"`
	ScreenshotsDir string `yaml:"screenshots_dir"`
	ReportsDir     string `yaml:"reports_dir"`
	LogLevel       string `yaml:"log_level"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	opts := lccn.DefaultOptions()
	return &Config{
		Verify:            opts.Verify,
		PageLoadTimeout:   opts.PageLoadTimeout,
		SearchTimeout:     opts.SearchTimeout,
		PollInterval:      opts.PollInterval,
		RequestsPerSecond: 1,
		UserAgent:         httpdom.DefaultUserAgent,
		SearchURL:         catalog.DefaultSearchURL,
		DetailURL:         catalog.DefaultDetailURL,
		OpenLibraryURL:    metadata.DefaultOpenLibraryURL,
		Selectors:         catalog.DefaultSelectors(),
		MetadataProvider:  "none",
		OllamaURL:         "http://localhost:11434",
		JournalDB:         "lccn-journal.db",
		ScreenshotsDir:    "screenshots",
		ReportsDir:        "reports",
		LogLevel:          "info",
	}
}

// Load builds a Config from defaults, then the YAML file at path (if any),
// then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*dst = d
		return nil
	}

	str("INPUT_CSV", &c.InputFile)
	str("INPUT_FILE", &c.InputFile)
	if v := strings.TrimSpace(getenv("VERIFY_ISBN")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid VERIFY_ISBN %q: %w", v, err)
		}
		c.Verify = b
	}
	for key, dst := range map[string]*time.Duration{
		"PAGE_LOAD_TIMEOUT": &c.PageLoadTimeout,
		"SEARCH_TIMEOUT":    &c.SearchTimeout,
		"POLL_INTERVAL":     &c.PollInterval,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	if v := strings.TrimSpace(getenv("REQUESTS_PER_SECOND")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid REQUESTS_PER_SECOND %q: %w", v, err)
		}
		c.RequestsPerSecond = f
	}
	str("USER_AGENT", &c.UserAgent)
	str("LOC_SEARCH_URL", &c.SearchURL)
	str("LCCN_BASE_URL", &c.DetailURL)
	str("OPENLIBRARY_URL", &c.OpenLibraryURL)
	str("METADATA_PROVIDER", &c.MetadataProvider)
	str("METADATA_MODEL", &c.MetadataModel)
	str("OLLAMA_URL", &c.OllamaURL)
	str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	str("GEMINI_API_KEY", &c.GeminiAPIKey)
	str("JOURNAL_DB", &c.JournalDB)
	str("SCREENSHOTS_DIR", &c.ScreenshotsDir)
	str("REPORTS_DIR", &c.ReportsDir)
	str("LOG_LEVEL", &c.LogLevel)
	return nil
}

// Validate checks the settings needed to enrich a table.
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("no input file configured: set INPUT_FILE or pass --input")
	}
	if _, err := os.Stat(c.InputFile); err != nil {
		return fmt.Errorf("file '%s' specified as input does not exist: %w", c.InputFile, err)
	}
	if c.SearchTimeout <= 0 || c.PageLoadTimeout <= 0 || c.PollInterval <= 0 {
		return fmt.Errorf("timeouts and poll interval must be positive")
	}
	switch c.MetadataProvider {
	case "", "none", "ollama", "openai", "gemini":
	default:
		return fmt.Errorf("unsupported metadata provider: %s", c.MetadataProvider)
	}
	return nil
}

// ResolverOptions returns the resolver settings.
func (c *Config) ResolverOptions() lccn.Options {
	return lccn.Options{
		Verify:          c.Verify,
		PageLoadTimeout: c.PageLoadTimeout,
		SearchTimeout:   c.SearchTimeout,
		PollInterval:    c.PollInterval,
	}
}

// Catalog returns the loc.gov endpoints and selectors.
func (c *Config) Catalog() catalog.Catalog {
	return catalog.Catalog{
		SearchURL: c.SearchURL,
		DetailURL: c.DetailURL,
		Selectors: c.Selectors,
	}.WithDefaults()
}

// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Ebay     EbayConfig     `yaml:"ebay"`
	Search   SearchConfig   `yaml:"search"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig defines the Echo status server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EbayConfig defines eBay API settings.
type EbayConfig struct {
	AppID      string          `yaml:"app_id"`
	CertID     string          `yaml:"cert_id"`
	TokenURL   string          `yaml:"token_url"`
	BrowseURL  string          `yaml:"browse_url"`
	FindingURL string          `yaml:"finding_url"`
	SiteID     string          `yaml:"site_id"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines eBay API rate limiting settings.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// SearchConfig defines the keyword searches and result filters.
type SearchConfig struct {
	Keywords        []string       `yaml:"keywords"`
	ExcludeKeywords []string       `yaml:"exclude_keywords"`
	MaxResults      int            `yaml:"max_results"`
	MinPrice        string         `yaml:"min_price"`
	MaxPrice        string         `yaml:"max_price"`
	Conditions      []string       `yaml:"conditions"`
	Location        LocationConfig `yaml:"location"`
}

// LocationConfig defines item location filters.
type LocationConfig struct {
	Country    string `yaml:"country"`     // itemLocationCountry filter
	PostalCode string `yaml:"postal_code"` // buyer postal code for proximity search
	Radius     string `yaml:"radius"`      // search radius, used with postal_code
	LocatedIn  string `yaml:"located_in"`  // comma-separated country codes, strict post-filter
	ShipsTo    string `yaml:"ships_to"`    // AvailableTo filter (Finding API)
}

// LocatedInCodes returns the located_in filter as upper-case country codes.
func (l *LocationConfig) LocatedInCodes() []string {
	if l.LocatedIn == "" {
		return nil
	}
	parts := strings.Split(l.LocatedIn, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.ToUpper(strings.TrimSpace(p)); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// ScheduleConfig defines scan scheduling.
type ScheduleConfig struct {
	ScanInterval   time.Duration `yaml:"scan_interval"`
	Stagger        time.Duration `yaml:"stagger"` // pause between keyword searches
	NotifyPace     time.Duration `yaml:"notify_pace"`
	PruneAfterDays int           `yaml:"prune_after_days"`
}

// TelegramConfig defines Telegram notification settings.
type TelegramConfig struct {
	BotToken string   `yaml:"bot_token"`
	ChatIDs  []string `yaml:"chat_ids"`
	APIURL   string   `yaml:"api_url"`
}

// Enabled reports whether Telegram notifications are configured.
func (t *TelegramConfig) Enabled() bool {
	return t.BotToken != "" && len(t.ChatIDs) > 0
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the YAML content.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyEbayDefaults(&cfg.Ebay)
	applySearchDefaults(&cfg.Search)
	applyScheduleDefaults(&cfg.Schedule)
	applyTelegramDefaults(&cfg.Telegram)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Path == "" {
		d.Path = "db/tracker.db"
	}
}

func applyEbayDefaults(e *EbayConfig) {
	if e.TokenURL == "" {
		e.TokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	}
	if e.BrowseURL == "" {
		e.BrowseURL = "https://api.ebay.com/buy/browse/v1/item_summary/search"
	}
	if e.FindingURL == "" {
		e.FindingURL = "https://svcs.ebay.com/services/search/FindingService/v1"
	}
	if e.SiteID == "" {
		e.SiteID = "EBAY_US"
	}
	applyRateLimitDefaults(&e.RateLimit)
}

func applyRateLimitDefaults(r *RateLimitConfig) {
	if r.PerSecond == 0 {
		r.PerSecond = 5.0
	}
	if r.Burst == 0 {
		r.Burst = 10
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 5000
	}
}

func applySearchDefaults(s *SearchConfig) {
	if s.MaxResults == 0 {
		s.MaxResults = 50
	}
	for i, kw := range s.ExcludeKeywords {
		s.ExcludeKeywords[i] = strings.ToLower(strings.TrimSpace(kw))
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.ScanInterval == 0 {
		s.ScanInterval = 30 * time.Minute
	}
	if s.NotifyPace == 0 {
		s.NotifyPace = time.Second
	}
	if s.PruneAfterDays == 0 {
		s.PruneAfterDays = 30
	}
}

func applyTelegramDefaults(t *TelegramConfig) {
	if t.APIURL == "" {
		t.APIURL = "https://api.telegram.org"
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Ebay.AppID == "" {
		errs = append(errs, fmt.Errorf("ebay.app_id is required"))
	}
	if len(cfg.Search.Keywords) == 0 {
		errs = append(errs, fmt.Errorf("search.keywords is required (at least one keyword)"))
	}
	for _, kw := range cfg.Search.Keywords {
		if strings.TrimSpace(kw) == "" {
			errs = append(errs, fmt.Errorf("search.keywords must not contain empty entries"))
			break
		}
	}
	if cfg.Search.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("search.max_results must not be negative"))
	}

	return errors.Join(errs...)
}

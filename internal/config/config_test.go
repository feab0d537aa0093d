package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		envVars   map[string]string
		wantErr   string
		checkFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid minimal config",
			yaml: `
ebay:
  app_id: my-app-id
search:
  keywords: ["thinkpad x220", "vintage lens"]
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "my-app-id", cfg.Ebay.AppID)
				assert.Equal(t, []string{"thinkpad x220", "vintage lens"}, cfg.Search.Keywords)
			},
		},
		{
			name: "defaults applied for optional fields",
			yaml: `
ebay:
  app_id: my-app-id
search:
  keywords: ["thinkpad x220"]
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, "db/tracker.db", cfg.Database.Path)
				assert.Equal(t, "https://api.ebay.com/identity/v1/oauth2/token", cfg.Ebay.TokenURL)
				assert.Equal(t, "https://api.ebay.com/buy/browse/v1/item_summary/search", cfg.Ebay.BrowseURL)
				assert.Equal(t, "https://svcs.ebay.com/services/search/FindingService/v1", cfg.Ebay.FindingURL)
				assert.Equal(t, "EBAY_US", cfg.Ebay.SiteID)
				assert.Equal(t, 5.0, cfg.Ebay.RateLimit.PerSecond)
				assert.Equal(t, 10, cfg.Ebay.RateLimit.Burst)
				assert.Equal(t, int64(5000), cfg.Ebay.RateLimit.DailyLimit)
				assert.Equal(t, 50, cfg.Search.MaxResults)
				assert.Equal(t, 30*time.Minute, cfg.Schedule.ScanInterval)
				assert.Equal(t, time.Duration(0), cfg.Schedule.Stagger)
				assert.Equal(t, time.Second, cfg.Schedule.NotifyPace)
				assert.Equal(t, 30, cfg.Schedule.PruneAfterDays)
				assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
			},
		},
		{
			name: "env var substitution",
			yaml: `
ebay:
  app_id: "${TEST_EBAY_APP_ID}"
  cert_id: "${TEST_EBAY_CERT_ID}"
search:
  keywords: ["thinkpad x220"]
`,
			envVars: map[string]string{
				"TEST_EBAY_APP_ID":  "app-from-env",
				"TEST_EBAY_CERT_ID": "cert-from-env",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "app-from-env", cfg.Ebay.AppID)
				assert.Equal(t, "cert-from-env", cfg.Ebay.CertID)
			},
		},
		{
			name: "missing required ebay.app_id",
			yaml: `
search:
  keywords: ["thinkpad x220"]
`,
			wantErr: "ebay.app_id is required",
		},
		{
			name: "missing required keywords",
			yaml: `
ebay:
  app_id: my-app-id
`,
			wantErr: "search.keywords is required",
		},
		{
			name: "empty keyword entry rejected",
			yaml: `
ebay:
  app_id: my-app-id
search:
  keywords: ["thinkpad x220", "  "]
`,
			wantErr: "search.keywords must not contain empty entries",
		},
		{
			name:    "invalid YAML",
			yaml:    `{{{not valid yaml`,
			wantErr: "parsing config YAML",
		},
		{
			name: "exclude keywords normalized to lower case",
			yaml: `
ebay:
  app_id: my-app-id
search:
  keywords: ["thinkpad x220"]
  exclude_keywords: [" Broken ", "FOR PARTS"]
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, []string{"broken", "for parts"}, cfg.Search.ExcludeKeywords)
			},
		},
		{
			name: "full config with overrides",
			yaml: `
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 60s
database:
  path: /var/lib/tracker/tracker.db
ebay:
  app_id: my-app-id
  cert_id: my-cert-id
  site_id: EBAY_UK
  rate_limit:
    per_second: 2
    burst: 4
    daily_limit: 1000
search:
  keywords: ["thinkpad x220"]
  max_results: 100
  min_price: "50"
  max_price: "300"
  conditions: ["USED", "OPEN_BOX"]
  location:
    country: GB
    postal_code: SW1A 1AA
    radius: "50"
    located_in: "GB, IE"
    ships_to: GB
schedule:
  scan_interval: 10m
  stagger: 5s
  notify_pace: 2s
  prune_after_days: 14
telegram:
  bot_token: tg-token
  chat_ids: ["123", "456"]
logging:
  level: debug
  format: json
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "/var/lib/tracker/tracker.db", cfg.Database.Path)
				assert.Equal(t, "EBAY_UK", cfg.Ebay.SiteID)
				assert.Equal(t, 2.0, cfg.Ebay.RateLimit.PerSecond)
				assert.Equal(t, 100, cfg.Search.MaxResults)
				assert.Equal(t, "50", cfg.Search.MinPrice)
				assert.Equal(t, []string{"USED", "OPEN_BOX"}, cfg.Search.Conditions)
				assert.Equal(t, "GB", cfg.Search.Location.Country)
				assert.Equal(t, []string{"GB", "IE"}, cfg.Search.Location.LocatedInCodes())
				assert.Equal(t, 10*time.Minute, cfg.Schedule.ScanInterval)
				assert.Equal(t, 5*time.Second, cfg.Schedule.Stagger)
				assert.Equal(t, 2*time.Second, cfg.Schedule.NotifyPace)
				assert.Equal(t, 14, cfg.Schedule.PruneAfterDays)
				assert.True(t, cfg.Telegram.Enabled())
				assert.Equal(t, []string{"123", "456"}, cfg.Telegram.ChatIDs)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			// Only parallelize tests that don't modify env vars.
			if len(tt.envVars) == 0 {
				t.Parallel()
			}

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := Load(path)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestTelegramConfig_Enabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  TelegramConfig
		want bool
	}{
		{name: "token and chats", cfg: TelegramConfig{BotToken: "t", ChatIDs: []string{"1"}}, want: true},
		{name: "missing token", cfg: TelegramConfig{ChatIDs: []string{"1"}}, want: false},
		{name: "missing chats", cfg: TelegramConfig{BotToken: "t"}, want: false},
		{name: "empty", cfg: TelegramConfig{}, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cfg.Enabled())
		})
	}
}

func TestLocationConfig_LocatedInCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "gb", want: []string{"GB"}},
		{name: "multiple with spaces", input: "GB, ie ,US", want: []string{"GB", "IE", "US"}},
		{name: "trailing comma", input: "GB,", want: []string{"GB"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := LocationConfig{LocatedIn: tt.input}
			assert.Equal(t, tt.want, l.LocatedInCodes())
		})
	}
}

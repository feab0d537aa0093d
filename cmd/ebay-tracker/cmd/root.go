// Package cmd implements the CLI commands for ebay-tracker.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skireal/ebay-tracker/internal/config"
	"github.com/skireal/ebay-tracker/internal/ebay"
	"github.com/skireal/ebay-tracker/internal/engine"
	"github.com/skireal/ebay-tracker/internal/notify"
	"github.com/skireal/ebay-tracker/internal/store"
	"github.com/skireal/ebay-tracker/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ebay-tracker",
	Short: "Monitor eBay for new listings matching keyword searches",
	Long: "ebay-tracker periodically searches eBay for configured keywords,\n" +
		"remembers every listing it has seen, and sends Telegram alerts for\n" +
		"new ones. A small status API exposes health, metrics, and the\n" +
		"tracked items.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().
		String("server", "http://localhost:8080", "status API URL (items, stats)")
	rootCmd.PersistentFlags().String("output", "table", "output format (table, json)")

	cobra.CheckErr(viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server")))
	cobra.CheckErr(viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output")))

	viper.SetEnvPrefix("EBAY_TRACKER")
	viper.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}

// loadConfig loads the config file and builds the logger from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, logger.New(cfg.Logging.Level, cfg.Logging.Format), nil
}

// openStore opens the SQLite store, creating its directory if needed.
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	return store.Open(cfg.Database.Path)
}

// buildSearchClient assembles the eBay client stack: Browse API behind the
// rate limiter, with the legacy Finding API as fallback. Without a cert ID
// the Browse OAuth flow cannot run, so the Finding API serves alone.
func buildSearchClient(cfg *config.Config, log *slog.Logger) ebay.Client {
	limiter := ebay.NewRateLimiter(
		cfg.Ebay.RateLimit.PerSecond,
		cfg.Ebay.RateLimit.Burst,
		cfg.Ebay.RateLimit.DailyLimit,
	)

	finding := ebay.NewFindingClient(
		cfg.Ebay.AppID,
		ebay.WithFindingURL(cfg.Ebay.FindingURL),
		ebay.WithFindingRateLimiter(limiter),
	)

	if cfg.Ebay.CertID == "" {
		log.Warn("ebay.cert_id not set, using Finding API only")
		return finding
	}

	tokens := ebay.NewOAuthTokenProvider(
		cfg.Ebay.AppID,
		cfg.Ebay.CertID,
		ebay.WithTokenURL(cfg.Ebay.TokenURL),
		ebay.WithAuthLogger(logger.Named(log, "oauth")),
	)
	browse := ebay.NewBrowseClient(
		tokens,
		ebay.WithBrowseURL(cfg.Ebay.BrowseURL),
		ebay.WithMarketplace(ebay.MarketplaceID(cfg.Ebay.SiteID)),
		ebay.WithRateLimiter(limiter),
	)

	return ebay.NewFallbackClient(browse, finding, log)
}

// searchTemplate builds the search parameters shared by every keyword.
func searchTemplate(cfg *config.Config) ebay.SearchRequest {
	return ebay.SearchRequest{
		Limit:           cfg.Search.MaxResults,
		MinPrice:        cfg.Search.MinPrice,
		MaxPrice:        cfg.Search.MaxPrice,
		Conditions:      cfg.Search.Conditions,
		LocationCountry: cfg.Search.Location.Country,
		PostalCode:      cfg.Search.Location.PostalCode,
		Radius:          cfg.Search.Location.Radius,
		LocatedIn:       cfg.Search.Location.LocatedIn,
		ShipsTo:         cfg.Search.Location.ShipsTo,
	}
}

func buildNotifier(cfg *config.Config, s store.Store, log *slog.Logger) notify.Notifier {
	if !cfg.Telegram.Enabled() {
		log.Warn("telegram not configured, notifications disabled")
		return notify.NewNoop(log)
	}
	return notify.NewTelegram(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatIDs,
		notify.WithAPIURL(cfg.Telegram.APIURL),
		notify.WithLogger(logger.Named(log, "notify")),
		notify.WithChatSource(subscriberChats(s)),
	)
}

// subscriberChats exposes the bot's active subscribers as notification
// recipients.
func subscriberChats(s store.Store) func(ctx context.Context) ([]string, error) {
	return func(ctx context.Context) ([]string, error) {
		subs, err := s.ActiveSubscribers(ctx)
		if err != nil {
			return nil, err
		}
		chats := make([]string, 0, len(subs))
		for _, sub := range subs {
			chats = append(chats, sub.ChatID)
		}
		return chats, nil
	}
}

func buildEngine(cfg *config.Config, s store.Store, log *slog.Logger) *engine.Engine {
	filter := ebay.NewFilter(
		cfg.Search.ExcludeKeywords,
		cfg.Search.Location.LocatedInCodes(),
		ebay.MarketplaceID(cfg.Ebay.SiteID),
		log,
	)

	return engine.NewEngine(
		s,
		buildSearchClient(cfg, log),
		filter,
		buildNotifier(cfg, s, log),
		cfg.Search.Keywords,
		searchTemplate(cfg),
		engine.WithLogger(logger.Named(log, "engine")),
		engine.WithNotifyPace(cfg.Schedule.NotifyPace),
		engine.WithStagger(cfg.Schedule.Stagger),
	)
}

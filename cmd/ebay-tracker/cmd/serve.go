package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skireal/ebay-tracker/internal/bot"
	"github.com/skireal/ebay-tracker/internal/config"
	"github.com/skireal/ebay-tracker/internal/engine"
	"github.com/skireal/ebay-tracker/internal/server"
	"github.com/skireal/ebay-tracker/internal/store"
	"github.com/skireal/ebay-tracker/pkg/logger"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = 24 * time.Hour
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracker: scheduled scans, Telegram bot, and status API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				log.Error("closing store", "error", err)
			}
		}()

		eng := buildEngine(cfg, s, log)

		sched, err := engine.NewScheduler(
			eng,
			cfg.Schedule.ScanInterval,
			pruneInterval,
			pruneFunc(cfg, s, log),
			log,
		)
		if err != nil {
			return fmt.Errorf("building scheduler: %w", err)
		}

		ctx, stop := signal.NotifyContext(
			cmd.Context(),
			os.Interrupt,
			syscall.SIGTERM,
		)
		defer stop()

		// First scan runs immediately; the scheduler takes over afterwards.
		go func() {
			if err := eng.Scan(ctx); err != nil {
				log.Error("initial scan failed", "error", err)
			}
		}()
		sched.Start()

		srv := server.New(
			s,
			logger.Named(log, "server"),
			server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		)
		errCh := make(chan error, 1)
		go func() {
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			errCh <- srv.Start(addr)
		}()

		botDone := startBot(ctx, cfg, s, log)

		select {
		case <-ctx.Done():
			log.Info("shutdown signal received")
		case err := <-errCh:
			return fmt.Errorf("status server: %w", err)
		}

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("status server shutdown", "error", err)
		}
		select {
		case <-sched.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn("scheduler jobs did not finish before shutdown deadline")
		}
		if botDone != nil {
			select {
			case <-botDone:
			case <-shutdownCtx.Done():
			}
		}

		log.Info("tracker stopped")
		return nil
	},
}

// pruneFunc deletes items first seen before the configured retention window.
func pruneFunc(
	cfg *config.Config,
	s store.Store,
	log *slog.Logger,
) func(ctx context.Context) error {
	retention := time.Duration(cfg.Schedule.PruneAfterDays) * 24 * time.Hour
	return func(ctx context.Context) error {
		pruned, err := s.PruneItems(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		if pruned > 0 {
			log.Info("pruned old items", "count", pruned)
		}
		return nil
	}
}

// startBot launches the Telegram command bot when a token is configured.
// The returned channel closes when the bot's poll loop exits; nil means
// the bot is disabled.
func startBot(
	ctx context.Context,
	cfg *config.Config,
	s store.Store,
	log *slog.Logger,
) <-chan struct{} {
	if cfg.Telegram.BotToken == "" {
		log.Info("telegram bot token not set, command bot disabled")
		return nil
	}

	b := bot.New(
		cfg.Telegram.BotToken,
		s,
		cfg.Search.Keywords,
		cfg.Ebay.SiteID,
		bot.WithAPIURL(cfg.Telegram.APIURL),
		bot.WithLogger(logger.Named(log, "bot")),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.Run(ctx); err != nil {
			log.Error("telegram bot stopped", "error", err)
		}
	}()
	return done
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skireal/ebay-tracker/internal/bot"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run only the Telegram command bot",
	Long: "Runs the Telegram bot without the scan scheduler or status API.\n" +
		"Useful for managing subscriptions while the tracker itself runs\n" +
		"elsewhere against the same database.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required for the bot")
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

		ctx, stop := signal.NotifyContext(
			cmd.Context(),
			os.Interrupt,
			syscall.SIGTERM,
		)
		defer stop()

		b := bot.New(
			cfg.Telegram.BotToken,
			s,
			cfg.Search.Keywords,
			cfg.Ebay.SiteID,
			bot.WithAPIURL(cfg.Telegram.APIURL),
			bot.WithLogger(log),
		)
		return b.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}

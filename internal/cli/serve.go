package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"meshmap/telegram-bot/internal/app"
	"meshmap/telegram-bot/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := newLogger(cfg.LogLevel)
		application := app.New(cfg, logger)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := application.Run(ctx); err != nil {
			return err
		}

		logger.Info("application stopped cleanly")
		return nil
	},
}

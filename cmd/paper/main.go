// Binary paper runs the engine offline: synthetic quotes, a simulated broker, real ledger files.
package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shreyas-sha3/zen-trade/internal/app"
	"github.com/shreyas-sha3/zen-trade/internal/config"
	"github.com/shreyas-sha3/zen-trade/internal/metrics"
	"github.com/shreyas-sha3/zen-trade/internal/report"
	"github.com/shreyas-sha3/zen-trade/internal/util"
)

func main() {
	var (
		configPath string
		duration   time.Duration
	)
	cmd := &cobra.Command{
		Use:          "paper",
		Short:        "Paper-trade the configured symbols against the stub feed",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.Broker.Provider = config.ProviderPaper
			cfg.Feed.Provider = config.ProviderStub
			log := util.NewLogger(cfg.App.LogLevel, cfg.App.PrettyLogs)

			if srv := metrics.Serve(cfg.App.MetricsAddr); srv != nil {
				log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
				defer srv.Close()
			}

			ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if duration > 0 {
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			log.Info().Msg("paper engine started")
			if err := a.Run(ctx); err != nil {
				return err
			}

			r := report.New(true)
			r.States(os.Stdout, a.Engine.Snapshot())
			r.Fills(os.Stdout, a.Fills.Snapshot())
			holdings, err := a.Broker.Holdings(context.Background())
			if err != nil {
				return fmt.Errorf("holdings: %w", err)
			}
			r.Holdings(os.Stdout, holdings)
			snap := a.Paper.Account().Snapshot(a.Paper.Marks())
			fmt.Printf("cash %s  realized %s  equity %s\n", snap.Cash.StringFixed(2), snap.RealizedPnL.StringFixed(2), snap.Equity.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "internal/config/config.yaml", "path to the YAML config")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Binary trader runs the volume-breakout engine against the live broker and exposes a few
// administrative account commands.
package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shreyas-sha3/zen-trade/internal/app"
	"github.com/shreyas-sha3/zen-trade/internal/broker"
	"github.com/shreyas-sha3/zen-trade/internal/config"
	"github.com/shreyas-sha3/zen-trade/internal/exchange"
	"github.com/shreyas-sha3/zen-trade/internal/metrics"
	"github.com/shreyas-sha3/zen-trade/internal/report"
	"github.com/shreyas-sha3/zen-trade/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

var (
	configPath string
	logLevel   string
	noColor    bool
)

func main() {
	root := &cobra.Command{
		Use:           "trader",
		Short:         "Volume breakout trader for NSE equities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML config")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override app.log_level")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored tables")

	root.AddCommand(runCmd(), holdingsCmd(), ordersCmd(), cancelCmd(),
		deliveryCmd("BUY"), deliveryCmd("SELL"), orderUpdatesCmd(), configCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	log := util.NewLogger(cfg.App.LogLevel, cfg.App.PrettyLogs).With().Str("app", cfg.App.Name).Logger()
	return cfg, log, nil
}

func runCmd() *cobra.Command {
	var (
		statusInterval time.Duration
		orderUpdates   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Resolve symbols, place seed hedges and stream until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if srv := metrics.Serve(cfg.App.MetricsAddr); srv != nil {
				log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
				defer srv.Close()
			}

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if statusInterval > 0 {
				go printStatus(ctx, a, statusInterval)
			}
			if orderUpdates && cfg.Broker.Provider == config.ProviderSmartAPI {
				creds, err := config.LoadCredentials(cfg.Broker.Env)
				if err != nil {
					return err
				}
				stream := newOrderStream(cfg, creds, log)
				go func() {
					if err := stream.Run(ctx, nil); err != nil && ctx.Err() == nil {
						log.Error().Err(err).Msg("order status stream stopped")
					}
				}()
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&statusInterval, "status-interval", 0, "print the symbol table this often (0 disables)")
	cmd.Flags().BoolVar(&orderUpdates, "order-updates", true, "log order status pushes while streaming (live broker only)")
	return cmd
}

func printStatus(ctx context.Context, a *app.App, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	r := report.New(!noColor)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.States(os.Stdout, a.Engine.Snapshot())
		}
	}
}

func newOrderStream(cfg *config.Config, creds config.Credentials, log zerolog.Logger) *exchange.OrderStream {
	return exchange.NewOrderStream(cfg.Feed.OrderUpdatesURL, creds.AuthToken,
		time.Duration(cfg.Feed.HeartbeatMs)*time.Millisecond,
		exchange.Backoff{
			Min:    time.Duration(cfg.Feed.Backoff.MinMs) * time.Millisecond,
			Max:    time.Duration(cfg.Feed.Backoff.MaxMs) * time.Millisecond,
			Factor: cfg.Feed.Backoff.Factor,
			Jitter: cfg.Feed.Backoff.Jitter,
		},
		log.With().Str("component", "order-updates").Logger())
}

func orderUpdatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order-updates",
		Short: "Follow the order status stream until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			creds, err := config.LoadCredentials(cfg.Broker.Env)
			if err != nil {
				return err
			}
			ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := newOrderStream(cfg, creds, log).Run(ctx, nil); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

// withBroker loads config and credentials and hands the configured broker to fn.
func withBroker(fn func(ctx context.Context, cfg *config.Config, b broker.Broker) error) error {
	cfg, _, err := load()
	if err != nil {
		return err
	}
	var creds config.Credentials
	if cfg.Broker.Provider == config.ProviderSmartAPI {
		if creds, err = config.LoadCredentials(cfg.Broker.Env); err != nil {
			return err
		}
	}
	bk, err := app.NewBroker(cfg, creds)
	if err != nil {
		return err
	}
	defer bk.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, cfg, bk.Broker)
}

func holdingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "holdings",
		Short: "Show delivery holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBroker(func(ctx context.Context, _ *config.Config, b broker.Broker) error {
				holdings, err := b.Holdings(ctx)
				if err != nil {
					return err
				}
				report.New(!noColor).Holdings(os.Stdout, holdings)
				return nil
			})
		},
	}
}

func ordersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "Show today's order book",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBroker(func(ctx context.Context, _ *config.Config, b broker.Broker) error {
				orders, err := b.OrderBook(ctx)
				if err != nil {
					return err
				}
				report.New(!noColor).Orders(os.Stdout, orders)
				return nil
			})
		},
	}
}

func cancelCmd() *cobra.Command {
	var variety string
	cmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel an open order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBroker(func(ctx context.Context, _ *config.Config, b broker.Broker) error {
				if err := b.CancelOrder(ctx, variety, args[0]); err != nil {
					return err
				}
				fmt.Printf("order %s cancelled\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&variety, "variety", broker.VarietyNormal, "order variety (NORMAL or STOPLOSS)")
	return cmd
}

func deliveryCmd(side string) *cobra.Command {
	var qty int64
	cmd := &cobra.Command{
		Use:   strings.ToLower(side) + " <symbol>",
		Short: "Place a delivery market order to " + strings.ToLower(side) + " an NSE equity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBroker(func(ctx context.Context, cfg *config.Config, b broker.Broker) error {
				id, s, err := broker.PlaceDelivery(ctx, b, cfg.Broker.Exchange, args[0], side, qty)
				if err != nil {
					return err
				}
				fmt.Printf("%s %d %s placed, order %s\n", side, qty, s.TradingSymbol, id)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&qty, "qty", 1, "number of shares")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the YAML config",
	}
	var (
		force   bool
		symbols []string
	)
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Init(path, symbols, force); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	initCmd.Flags().StringSliceVar(&symbols, "symbols", []string{"BPCL", "SBIN"}, "symbols to trade, NAME or NAME:TOKEN")
	cmd.AddCommand(initCmd)
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ducminhle1904/webhook-bridge/internal/config"
	"github.com/ducminhle1904/webhook-bridge/internal/exchange/bybit"
	"github.com/ducminhle1904/webhook-bridge/internal/logger"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configFile string
	envFile    string

	cfg     *config.Config
	logger  *zap.Logger
	cleanup func()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "webhook-bridge",
		Short: "Relay TradingView alerts to Bybit and to polling terminals",
		Long: `webhook-bridge receives TradingView webhook alerts and either queues them
per account for an external terminal to poll, or sizes and places them as
risk-checked market orders on Bybit linear perpetuals.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.cleanup != nil {
				a.cleanup()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "optional YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(
		newServeCmd(a),
		newStatusCmd(a),
		newFlattenCmd(a),
		newSignCmd(a),
	)
	return root
}

func (a *app) load() error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	log, cleanup, err := logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.cfg = cfg
	a.logger = log
	a.cleanup = cleanup
	return nil
}

func (a *app) bybitClient(opts ...bybit.Option) *bybit.Client {
	opts = append([]bybit.Option{bybit.WithLogger(a.logger)}, opts...)
	return bybit.NewClient(bybit.Config{
		APIKey:    a.cfg.Bybit.APIKey,
		APISecret: a.cfg.Bybit.APISecret,
		Testnet:   a.cfg.Bybit.Testnet,
		Demo:      a.cfg.Bybit.Demo,
	}, opts...)
}

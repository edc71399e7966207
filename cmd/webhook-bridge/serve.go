package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ducminhle1904/webhook-bridge/internal/exchange/bybit"
	"github.com/ducminhle1904/webhook-bridge/internal/journal"
	"github.com/ducminhle1904/webhook-bridge/internal/notifications"
	"github.com/ducminhle1904/webhook-bridge/internal/queue"
	"github.com/ducminhle1904/webhook-bridge/internal/relay"
	"github.com/ducminhle1904/webhook-bridge/internal/risk"
	"github.com/ducminhle1904/webhook-bridge/internal/server"
)

// Bybit allows 10 order requests per second per UID on linear contracts.
const (
	bybitBurst             = 10
	bybitRequestsPerSecond = 10
	instrumentCacheTTL     = time.Hour
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := a.logger

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	riskCfg, err := cfg.RiskConfig()
	if err != nil {
		return err
	}
	registry := risk.NewRegistry(riskCfg, risk.WithLogger(log))

	clientOpts := []bybit.Option{bybit.WithRateLimit(bybitBurst, bybitRequestsPerSecond)}
	if cfg.Bybit.ReadRetries > 0 {
		retry := bybit.DefaultRetryConfig()
		retry.MaxRetries = cfg.Bybit.ReadRetries
		clientOpts = append(clientOpts, bybit.WithRetry(retry))
	}
	client := a.bybitClient(clientOpts...)
	if cfg.Bybit.APIKey == "" || cfg.Bybit.APISecret == "" {
		log.Warn("Bybit credentials are not set; /bybit requests will be rejected by the exchange")
	}

	var notifier notifications.Notifier = notifications.NoopNotifier{}
	if cfg.Telegram.Enabled() {
		notifier = notifications.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
	}

	q, closeQueue, err := a.openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	j := journal.New(cfg.Server.JournalCapacity)
	processorOpts := []relay.Option{
		relay.WithLogger(log),
		relay.WithNotifier(notifier),
		relay.WithJournal(j),
	}
	if cfg.Bybit.CheckLotSize {
		processorOpts = append(processorOpts, relay.WithInstruments(bybit.NewInstrumentCache(client, instrumentCacheTTL)))
	}
	processor := relay.NewProcessor(client, registry, processorOpts...)

	srv := server.New(server.Config{
		WebhookSecret:        cfg.Server.WebhookSecret,
		RequireTokenForBybit: cfg.Server.RequireTokenForBybit,
		Testnet:              cfg.Bybit.Testnet,
	}, server.Deps{
		Queue:     q,
		Processor: processor,
		Exchange:  client,
		Journal:   j,
		Logger:    log,
	})

	log.Info("webhook bridge configured",
		zap.String("environment", client.GetEnvironment()),
		zap.String("base_url", client.BaseURL()),
		zap.Strings("allowed_symbols", riskCfg.AllowedSymbols),
		zap.Bool("token_required_for_bybit", cfg.Server.RequireTokenForBybit && cfg.Server.WebhookSecret != ""))

	return srv.Run(ctx, cfg.Server.Addr)
}

func (a *app) openQueue(ctx context.Context) (queue.Queue, func(), error) {
	if a.cfg.Redis.URL == "" {
		a.logger.Info("using in-memory signal queue")
		return queue.NewMemoryQueue(), func() {}, nil
	}

	rq, err := queue.NewRedisQueue(a.cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := rq.Ping(ctx); err != nil {
		_ = rq.Close()
		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	a.logger.Info("using redis signal queue")
	return rq, func() { _ = rq.Close() }, nil
}

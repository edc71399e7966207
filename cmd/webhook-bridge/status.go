package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ducminhle1904/webhook-bridge/internal/exchange/bybit"
	"github.com/ducminhle1904/webhook-bridge/internal/risk"
)

func newStatusCmd(a *app) *cobra.Command {
	var initialBalance float64

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show exchange connectivity, balances, open positions and risk metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			return a.status(ctx, cmd.OutOrStdout(), initialBalance)
		},
	}
	cmd.Flags().Float64Var(&initialBalance, "initial-balance", 0, "session starting balance used for drawdown and the emergency stop check")
	return cmd
}

type accountSnapshot struct {
	healthy   bool
	balances  []bybit.CoinBalance
	positions []bybit.Position
}

func (a *app) status(ctx context.Context, out io.Writer, initialBalance float64) error {
	client := a.bybitClient()

	var snap accountSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap.healthy = client.Ping(gctx)
		return nil
	})
	g.Go(func() error {
		var err error
		snap.balances, err = client.GetBalance(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.positions, err = client.GetPositions(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	riskCfg, err := a.cfg.RiskConfig()
	if err != nil {
		return err
	}
	manager := risk.NewManager(riskCfg, risk.WithLogger(a.logger))

	balance := bybit.FindCoin(snap.balances, bybit.SettleCoinUSDT)
	if initialBalance <= 0 {
		initialBalance = balance
	}
	positions := toRiskPositions(snap.positions)

	renderEnvironment(out, client, snap.healthy)
	renderBalances(out, snap.balances)
	renderPositions(out, snap.positions)
	renderRisk(out, manager, balance, initialBalance, positions)
	return nil
}

func renderEnvironment(out io.Writer, client *bybit.Client, healthy bool) {
	connectivity := "healthy"
	if !healthy {
		connectivity = "unhealthy"
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("BYBIT")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Environment", client.GetEnvironment()},
		{"Endpoint", client.BaseURL()},
		{"Connectivity", connectivity},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, Align: text.AlignLeft},
	})
	t.Render()
}

func renderBalances(out io.Writer, balances []bybit.CoinBalance) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("WALLET")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Coin", "Wallet", "Equity", "Unrealised PnL"})
	for _, b := range balances {
		if b.Wallet() == 0 {
			continue
		}
		t.AppendRow(table.Row{b.Coin, b.WalletBalance, b.Equity, b.UnrealisedPnl})
	}
	t.Render()
}

func renderPositions(out io.Writer, positions []bybit.Position) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Side", "Size", "Entry", "Mark", "Stop Loss", "Unrealised PnL"})
	for _, p := range positions {
		if p.SizeValue() == 0 {
			continue
		}
		t.AppendRow(table.Row{p.Symbol, p.Side, p.Size, p.AvgPrice, p.MarkPrice, p.StopLoss, p.UnrealisedPnl})
	}
	t.Render()
}

func renderRisk(out io.Writer, manager *risk.Manager, balance, initialBalance float64, positions []risk.Position) {
	metrics := manager.GetRiskMetrics(balance, initialBalance, positions)
	emergency := "no"
	if manager.ShouldTriggerEmergencyStop(balance, initialBalance) {
		emergency = "YES"
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("RISK")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Balance (USDT)", fmt.Sprintf("%.2f", balance)},
		{"Initial balance", fmt.Sprintf("%.2f", initialBalance)},
		{"Exposure", metrics.Exposure + "%"},
		{"Drawdown", metrics.Drawdown + "%"},
		{"Open positions", metrics.OpenPositions},
		{"Emergency stop", emergency},
	})
	t.Render()
}

func toRiskPositions(positions []bybit.Position) []risk.Position {
	out := make([]risk.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, risk.Position{
			Symbol:    p.Symbol,
			Size:      p.SignedSize(),
			MarkPrice: p.MarkPriceValue(),
			AvgPrice:  p.AvgPriceValue(),
		})
	}
	return out
}

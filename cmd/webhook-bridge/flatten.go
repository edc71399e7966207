package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ducminhle1904/webhook-bridge/internal/exchange/bybit"
)

func newFlattenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flatten SYMBOL",
		Short: "Cancel open orders and close the position on a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			symbol := bybit.FormatSymbol(args[0])
			client := a.bybitClient()

			cancelled, err := client.CancelAllOrders(ctx, symbol)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %d open orders on %s\n", len(cancelled), symbol)

			positions, err := client.GetPositions(ctx, symbol)
			if err != nil {
				return err
			}
			closed := 0
			for _, p := range positions {
				if p.SizeValue() == 0 {
					continue
				}
				order, err := client.CloseOpenPosition(ctx, p)
				if err != nil {
					return err
				}
				a.logger.Info("position closed",
					zap.String("symbol", symbol),
					zap.String("side", p.Side),
					zap.Int("position_idx", p.PositionIdx),
					zap.String("order_id", order.OrderID))
				closed++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed %d positions on %s\n", closed, symbol)
			return nil
		},
	}
}

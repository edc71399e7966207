package bybit

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"go.uber.org/zap"
)

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// Opposite returns the side that reduces a position opened on s.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType represents the type of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

// TimeInForce represents how long an order remains active
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good Till Cancelled
	TimeInForceIOC TimeInForce = "IOC" // Immediate Or Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill Or Kill
)

// Position index values. One-way accounts hold a single net position (0);
// hedge-mode accounts keep separate long (1) and short (2) positions.
const (
	PositionIdxOneWay    = 0
	PositionIdxHedgeBuy  = 1
	PositionIdxHedgeSell = 2
)

func hedgePositionIdx(side OrderSide) int {
	if side == OrderSideBuy {
		return PositionIdxHedgeBuy
	}
	return PositionIdxHedgeSell
}

type orderOptions struct {
	orderType   OrderType
	timeInForce TimeInForce
	closing     bool
	positionIdx int
}

// OrderOption customizes PlaceOrder.
type OrderOption func(*orderOptions)

// WithOrderType overrides the default Market order type.
func WithOrderType(orderType OrderType) OrderOption {
	return func(o *orderOptions) {
		o.orderType = orderType
	}
}

// WithTimeInForce overrides the default IOC time in force.
func WithTimeInForce(tif TimeInForce) OrderOption {
	return func(o *orderOptions) {
		o.timeInForce = tif
	}
}

// WithClose marks the order as reduce-only against the position held at
// positionIdx. The index comes from the position itself, so the hedge-mode
// fallback is skipped.
func WithClose(positionIdx int) OrderOption {
	return func(o *orderOptions) {
		o.closing = true
		o.positionIdx = positionIdx
	}
}

// PlaceOrder places a linear order assuming a one-way account. When Bybit
// rejects it because the account is in hedge mode, the order is retried
// exactly once with the hedge position index for side. Any other rejection
// is returned as is.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, side OrderSide, qty float64, opts ...OrderOption) (*OrderResult, error) {
	o := orderOptions{
		orderType:   OrderTypeMarket,
		timeInForce: TimeInForceIOC,
	}
	for _, opt := range opts {
		opt(&o)
	}

	params := Params{
		{Key: "category", Value: string(CategoryLinear)},
		{Key: "symbol", Value: symbol},
		{Key: "side", Value: string(side)},
		{Key: "orderType", Value: string(o.orderType)},
		{Key: "qty", Value: formatFloat(qty)},
		{Key: "timeInForce", Value: string(o.timeInForce)},
		{Key: "positionIdx", Value: o.positionIdx},
		{Key: "reduceOnly", Value: o.closing},
	}

	order, err := c.createOrder(ctx, params)
	if err == nil {
		return order, nil
	}
	if o.closing || RejectionReason(err) != RejectReasonPositionIdxMismatch {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	c.logger.Info("one-way order rejected, retrying in hedge mode",
		zap.String("symbol", symbol),
		zap.String("side", string(side)))

	params.Set("positionIdx", hedgePositionIdx(side))
	order, err = c.createOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to place hedge-mode order: %w", err)
	}
	return order, nil
}

func (c *Client) createOrder(ctx context.Context, params Params) (*OrderResult, error) {
	result, err := c.request(ctx, "/v5/order/create", http.MethodPost, params)
	if err != nil {
		return nil, err
	}

	var order OrderResult
	if err := decodeResult(result, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetPositions retrieves USDT-margined linear positions, optionally for one symbol
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]Position, error) {
	params := Params{
		{Key: "category", Value: string(CategoryLinear)},
		{Key: "settleCoin", Value: SettleCoinUSDT},
	}
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	result, err := c.request(ctx, "/v5/position/list", http.MethodGet, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}

	var positions listResult[Position]
	if err := decodeResult(result, &positions); err != nil {
		return nil, fmt.Errorf("failed to parse positions response: %w", err)
	}
	if positions.List == nil {
		return []Position{}, nil
	}
	return positions.List, nil
}

// ClosePosition flattens the position on symbol that was opened on side by
// placing a reduce-only market order on the opposite side for its full size.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side OrderSide) (*OrderResult, error) {
	positions, err := c.GetPositions(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to close position: %w", err)
	}

	var position *Position
	for i := range positions {
		if positions[i].Symbol == symbol && OrderSide(positions[i].Side) == side && positions[i].SizeValue() != 0 {
			position = &positions[i]
			break
		}
	}
	if position == nil {
		return nil, fmt.Errorf("%w for %s %s", ErrNoOpenPosition, side, symbol)
	}

	return c.CloseOpenPosition(ctx, *position)
}

// CloseOpenPosition sends the reduce-only order that flattens position.
func (c *Client) CloseOpenPosition(ctx context.Context, position Position) (*OrderResult, error) {
	size := math.Abs(position.SizeValue())
	if size == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoOpenPosition, position.Symbol)
	}
	side := OrderSide(position.Side).Opposite()
	return c.PlaceOrder(ctx, position.Symbol, side, size, WithClose(position.PositionIdx))
}

// CancelAllOrders cancels all open orders for a symbol
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) ([]OrderResult, error) {
	params := Params{
		{Key: "category", Value: string(CategoryLinear)},
		{Key: "symbol", Value: symbol},
	}

	result, err := c.request(ctx, "/v5/order/cancel-all", http.MethodPost, params)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel all orders: %w", err)
	}

	var cancelled listResult[OrderResult]
	if err := decodeResult(result, &cancelled); err != nil {
		return nil, fmt.Errorf("failed to parse cancel response: %w", err)
	}
	return cancelled.List, nil
}

// SetTradingStop sets stop loss and/or take profit on the one-way position
// for symbol. Zero levels are left untouched.
func (c *Client) SetTradingStop(ctx context.Context, symbol string, side OrderSide, stopLoss, takeProfit float64) error {
	params := Params{
		{Key: "category", Value: string(CategoryLinear)},
		{Key: "symbol", Value: symbol},
		{Key: "positionIdx", Value: PositionIdxOneWay},
	}
	if stopLoss != 0 {
		params.Set("stopLoss", formatFloat(stopLoss))
	}
	if takeProfit != 0 {
		params.Set("takeProfit", formatFloat(takeProfit))
	}

	if _, err := c.request(ctx, "/v5/position/trading-stop", http.MethodPost, params); err != nil {
		return fmt.Errorf("failed to set trading stop for %s %s: %w", side, symbol, err)
	}
	return nil
}

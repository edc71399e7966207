package risk

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidStopLoss is returned when the stop loss equals the entry price.
var ErrInvalidStopLoss = errors.New("invalid stop loss price - no risk per unit")

var (
	hundred               = decimal.NewFromInt(100)
	strengthScale         = decimal.NewFromInt(3)
	maxStrengthMultiplier = decimal.NewFromFloat(1.5)
)

// CalculatePositionSize sizes a trade so that hitting the stop loses
// MaxRiskPerTrade percent of balance, scaled by signal strength (capped at
// 1.5x) and rounded half-up to 2 decimals.
func (m *Manager) CalculatePositionSize(balance, entryPrice, stopLossPrice, signalStrength float64) (float64, error) {
	riskAmount := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(m.cfg.MaxRiskPerTrade)).
		Div(hundred)
	riskPerUnit := decimal.NewFromFloat(entryPrice).Sub(decimal.NewFromFloat(stopLossPrice)).Abs()
	if riskPerUnit.IsZero() {
		return 0, ErrInvalidStopLoss
	}

	multiplier := decimal.Min(decimal.NewFromFloat(signalStrength).Div(strengthScale), maxStrengthMultiplier)
	size, _ := riskAmount.Div(riskPerUnit).Mul(multiplier).Round(2).Float64()
	return size, nil
}

// CalculateStopLoss places the stop atr*multiplier away from entry, below it
// for buys and above it otherwise.
func CalculateStopLoss(entryPrice float64, action Action, atr, multiplier float64) float64 {
	distance := decimal.NewFromFloat(atr).Mul(decimal.NewFromFloat(multiplier))
	entry := decimal.NewFromFloat(entryPrice)

	var stop decimal.Decimal
	if action == ActionBuy {
		stop = entry.Sub(distance)
	} else {
		stop = entry.Add(distance)
	}
	f, _ := stop.Float64()
	return f
}

// PercentStopLoss places the stop percent away from entry, below it for buys
// and above it otherwise.
func PercentStopLoss(entryPrice float64, action Action, percent float64) float64 {
	offset := decimal.NewFromFloat(percent).Div(hundred)
	factor := decimal.NewFromInt(1).Add(offset)
	if action == ActionBuy {
		factor = decimal.NewFromInt(1).Sub(offset)
	}
	f, _ := decimal.NewFromFloat(entryPrice).Mul(factor).Float64()
	return f
}

package risk

import (
	"math"
	"strings"
)

// Action is the trade decision derived from a signal
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionClose Action = "close"
	ActionHold  Action = "hold"
)

// Trend composite thresholds. Values strictly beyond them open a position.
const (
	BuyThreshold  = 3.0
	SellThreshold = -3.0
)

// DefaultSymbol is used when a signal carries no symbol.
const DefaultSymbol = "BTCUSDT"

// Signal is an inbound TradingView alert.
type Signal struct {
	Symbol         string      `json:"symbol,omitempty"`
	TrendComposite *float64    `json:"trendComposite" validate:"required"`
	ATRStop        *float64    `json:"atr_stop,omitempty" validate:"omitempty,gt=0"`
	ATR            *float64    `json:"atr,omitempty" validate:"omitempty,gt=0"`
	Timestamp      interface{} `json:"timestamp,omitempty"`
	Token          string      `json:"token,omitempty"`
	Account        string      `json:"account,omitempty"`
}

// Validate checks the fields a signal must carry before it reaches the exchange.
func (s Signal) Validate() error {
	return validate.Struct(s)
}

// ProcessedSignal is the deterministic interpretation of a Signal.
type ProcessedSignal struct {
	Action         Action      `json:"action"`
	SignalStrength float64     `json:"signalStrength"`
	Symbol         string      `json:"symbol"`
	Timestamp      interface{} `json:"timestamp"`
	OriginalSignal Signal      `json:"originalSignal"`
}

// Classify maps a trend composite value to an action.
func Classify(trendComposite float64) Action {
	switch {
	case trendComposite > BuyThreshold:
		return ActionBuy
	case trendComposite < SellThreshold:
		return ActionSell
	case trendComposite == 0:
		return ActionClose
	default:
		// Dead zone: [-3,0) and (0,3] are too weak to open and too strong to close.
		return ActionHold
	}
}

// ProcessSignal derives direction and strength from a signal. A missing
// trend composite counts as 0, which closes positions.
func (m *Manager) ProcessSignal(signal Signal) ProcessedSignal {
	var trend float64
	if signal.TrendComposite != nil {
		trend = *signal.TrendComposite
	}

	symbol := strings.ToUpper(strings.TrimSpace(signal.Symbol))
	if symbol == "" {
		symbol = DefaultSymbol
	}

	timestamp := signal.Timestamp
	if isEmptyTimestamp(timestamp) {
		timestamp = m.now().UnixMilli()
	}

	return ProcessedSignal{
		Action:         Classify(trend),
		SignalStrength: math.Abs(trend),
		Symbol:         symbol,
		Timestamp:      timestamp,
		OriginalSignal: signal,
	}
}

func isEmptyTimestamp(ts interface{}) bool {
	switch v := ts.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case float64:
		return v == 0
	}
	return false
}

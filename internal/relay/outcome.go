package relay

import (
	"github.com/ducminhle1904/webhook-bridge/internal/exchange/bybit"
	"github.com/ducminhle1904/webhook-bridge/internal/risk"
)

// ActionCloseAll is reported when a close signal flattened a symbol.
const ActionCloseAll = "close_all"

// ValidationFailedMessage is the error text of a trade refused by risk rules.
const ValidationFailedMessage = "Trade validation failed"

// Outcome is the response to a processed signal. A trade refused by risk
// validation is an Outcome with Rejected set, not an error.
type Outcome struct {
	OK              bool               `json:"ok"`
	Action          string             `json:"action,omitempty"`
	OrderID         string             `json:"orderId,omitempty"`
	Symbol          string             `json:"symbol,omitempty"`
	Side            bybit.OrderSide    `json:"side,omitempty"`
	Quantity        float64            `json:"quantity,omitempty"`
	Price           float64            `json:"price,omitempty"`
	StopLoss        float64            `json:"stopLoss,omitempty"`
	SignalStrength  *float64           `json:"signalStrength,omitempty"`
	ClosedPositions *int               `json:"closedPositions,omitempty"`
	Message         string             `json:"message,omitempty"`
	Validation      *ValidationSummary `json:"validation,omitempty"`
	RiskMetrics     *risk.RiskMetrics  `json:"riskMetrics,omitempty"`
	EmergencyStop   bool               `json:"emergencyStop,omitempty"`
	Error           string             `json:"error,omitempty"`
	Errors          []string           `json:"errors,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
	Timestamp       string             `json:"timestamp"`

	Rejected bool `json:"-"`
}

// ValidationSummary carries the warnings of an accepted trade.
type ValidationSummary struct {
	Warnings []string `json:"warnings"`
}

package risk

// TradeProposal is a trade under validation. CalculatedSize is filled in by
// ValidateTrade when entry and stop prices allow sizing.
type TradeProposal struct {
	Symbol         string   `json:"symbol"`
	Action         Action   `json:"action"`
	EntryPrice     float64  `json:"entryPrice,omitempty"`
	StopLossPrice  float64  `json:"stopLossPrice,omitempty"`
	SignalStrength float64  `json:"signalStrength"`
	CalculatedSize *float64 `json:"calculatedSize,omitempty"`
}

// ValidationResult reports every rule a trade violated. IsValid is true iff
// Errors is empty.
type ValidationResult struct {
	IsValid       bool           `json:"isValid"`
	Errors        []string       `json:"errors"`
	Warnings      []string       `json:"warnings"`
	AdjustedTrade *TradeProposal `json:"adjustedTrade"`
}

// Position is an open exchange position as seen by the risk rules. Size is
// signed, shorts negative.
type Position struct {
	Symbol    string  `json:"symbol"`
	Size      float64 `json:"size"`
	MarkPrice float64 `json:"markPrice"`
	AvgPrice  float64 `json:"avgPrice"`
}

// IsOpen reports whether the position holds any size.
func (p Position) IsOpen() bool {
	return p.Size != 0
}

func (p Position) price() float64 {
	if p.MarkPrice != 0 {
		return p.MarkPrice
	}
	return p.AvgPrice
}

// DailyStats tracks realized results for the current UTC day. It lives in
// memory only and starts over on restart.
type DailyStats struct {
	TradesCount   int     `json:"tradesCount"`
	PnL           float64 `json:"pnl"`
	LastResetDate string  `json:"lastResetDate"`
}

// RiskMetrics is a point-in-time risk report. Percentages and PnL are
// formatted with 2 decimals.
type RiskMetrics struct {
	Exposure      string `json:"exposure"`
	Drawdown      string `json:"drawdown"`
	DailyPnL      string `json:"dailyPnl"`
	DailyTrades   int    `json:"dailyTrades"`
	OpenPositions int    `json:"openPositions"`
}

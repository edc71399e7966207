package bybit

import (
	"encoding/json"
	"strconv"
)

// ServerResponse represents the standard Bybit API response wrapper
type ServerResponse struct {
	RetCode    int             `json:"retCode"`
	RetMsg     string          `json:"retMsg"`
	Result     json.RawMessage `json:"result"`
	RetExtInfo json.RawMessage `json:"retExtInfo"`
	Time       int64           `json:"time"`
}

// Category identifies the Bybit product line.
type Category string

const (
	CategoryLinear Category = "linear"
	CategorySpot   Category = "spot"
)

// SettleCoinUSDT is the settlement coin for USDT-margined perpetuals.
const SettleCoinUSDT = "USDT"

// CoinBalance is one coin entry of the unified wallet balance.
type CoinBalance struct {
	Coin                string `json:"coin"`
	Equity              string `json:"equity"`
	UsdValue            string `json:"usdValue"`
	WalletBalance       string `json:"walletBalance"`
	AvailableToWithdraw string `json:"availableToWithdraw"`
	TotalOrderIM        string `json:"totalOrderIM"`
	TotalPositionIM     string `json:"totalPositionIM"`
	UnrealisedPnl       string `json:"unrealisedPnl"`
	CumRealisedPnl      string `json:"cumRealisedPnl"`
}

// Wallet returns the wallet balance as a number.
func (b CoinBalance) Wallet() float64 {
	return parseFloat64(b.WalletBalance)
}

// FindCoin returns the wallet balance of coin, or 0 when the coin is absent.
func FindCoin(balances []CoinBalance, coin string) float64 {
	for _, b := range balances {
		if b.Coin == coin {
			return b.Wallet()
		}
	}
	return 0
}

// Position represents a linear futures position. Bybit reports Size unsigned
// with the direction in Side ("Buy", "Sell", or "" when flat).
type Position struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	MarkPrice     string `json:"markPrice"`
	PositionValue string `json:"positionValue"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	TakeProfit    string `json:"takeProfit"`
	StopLoss      string `json:"stopLoss"`
	PositionIdx   int    `json:"positionIdx"`
}

// SizeValue returns the unsigned position size.
func (p Position) SizeValue() float64 {
	return parseFloat64(p.Size)
}

// SignedSize returns the size with shorts negative.
func (p Position) SignedSize() float64 {
	size := p.SizeValue()
	if OrderSide(p.Side) == OrderSideSell && size > 0 {
		return -size
	}
	return size
}

// MarkPriceValue returns the mark price as a number.
func (p Position) MarkPriceValue() float64 {
	return parseFloat64(p.MarkPrice)
}

// AvgPriceValue returns the average entry price as a number.
func (p Position) AvgPriceValue() float64 {
	return parseFloat64(p.AvgPrice)
}

// Ticker is a single entry of /v5/market/tickers.
type Ticker struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	MarkPrice    string `json:"markPrice"`
	IndexPrice   string `json:"indexPrice"`
	Bid1Price    string `json:"bid1Price"`
	Ask1Price    string `json:"ask1Price"`
	Price24hPcnt string `json:"price24hPcnt"`
	Volume24h    string `json:"volume24h"`
	FundingRate  string `json:"fundingRate"`
}

// LastPriceValue returns the last traded price as a number.
func (t *Ticker) LastPriceValue() float64 {
	if t == nil {
		return 0
	}
	return parseFloat64(t.LastPrice)
}

// OrderResult is the acknowledgement returned by order create/cancel calls.
type OrderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

type listResult[T any] struct {
	Category string `json:"category"`
	List     []T    `json:"list"`
}

type walletResult struct {
	List []struct {
		AccountType        string        `json:"accountType"`
		TotalEquity        string        `json:"totalEquity"`
		TotalWalletBalance string        `json:"totalWalletBalance"`
		Coin               []CoinBalance `json:"coin"`
	} `json:"list"`
}

// Helper functions for parsing string numbers
func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

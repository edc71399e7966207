package bybit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode"
)

// GetTicker returns the linear ticker for symbol, or nil when Bybit has none.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	params := Params{
		{Key: "category", Value: string(CategoryLinear)},
		{Key: "symbol", Value: symbol},
	}

	result, err := c.request(ctx, "/v5/market/tickers", http.MethodGet, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker: %w", err)
	}

	var tickers listResult[Ticker]
	if err := decodeResult(result, &tickers); err != nil {
		return nil, fmt.Errorf("failed to parse ticker response: %w", err)
	}

	if len(tickers.List) == 0 {
		return nil, nil
	}
	return &tickers.List[0], nil
}

// Ping probes the unauthenticated server time endpoint. Any failure,
// including transport errors, is reported as false.
func (c *Client) Ping(ctx context.Context) bool {
	resp, err := c.sdk.NewUtaBybitServiceNoParams().GetServerTime(ctx)
	if err != nil {
		c.logger.Sugar().Warnf("Bybit ping failed: %v", err)
		return false
	}
	return resp != nil && resp.RetCode == 0
}

// FormatSymbol normalizes a symbol to Bybit's format, e.g. "btc/usdt" -> "BTCUSDT".
// Digits are kept for contracts such as 1000PEPEUSDT.
func FormatSymbol(symbol string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return -1
		}
		return unicode.ToUpper(r)
	}, symbol)
}

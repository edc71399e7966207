package bybit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentInfo is the part of a linear instrument's definition that
// bounds order quantities.
type InstrumentInfo struct {
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	LotSizeFilter struct {
		MinOrderQty    string `json:"minOrderQty"`
		MaxMktOrderQty string `json:"maxMktOrderQty"`
		QtyStep        string `json:"qtyStep"`
	} `json:"lotSizeFilter"`
}

// GetInstrumentInfo returns the linear instrument definition for symbol, or
// nil when Bybit does not list it.
func (c *Client) GetInstrumentInfo(ctx context.Context, symbol string) (*InstrumentInfo, error) {
	params := Params{
		{Key: "category", Value: string(CategoryLinear)},
		{Key: "symbol", Value: symbol},
	}

	result, err := c.request(ctx, "/v5/market/instruments-info", http.MethodGet, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument info: %w", err)
	}

	var instruments listResult[InstrumentInfo]
	if err := decodeResult(result, &instruments); err != nil {
		return nil, fmt.Errorf("failed to parse instrument info: %w", err)
	}
	for i := range instruments.List {
		if instruments.List[i].Symbol == symbol {
			return &instruments.List[i], nil
		}
	}
	return nil, nil
}

// CheckQty reports every way qty breaks the lot size filter. Empty filter
// fields are not checked.
func (i *InstrumentInfo) CheckQty(qty float64) []string {
	var problems []string
	q := decimal.NewFromFloat(qty)
	filter := i.LotSizeFilter

	if minQty, err := decimal.NewFromString(filter.MinOrderQty); err == nil && q.LessThan(minQty) {
		problems = append(problems, fmt.Sprintf("Quantity %s below minimum order size %s for %s", q, minQty, i.Symbol))
	}
	if maxQty, err := decimal.NewFromString(filter.MaxMktOrderQty); err == nil && maxQty.IsPositive() && q.GreaterThan(maxQty) {
		problems = append(problems, fmt.Sprintf("Quantity %s above maximum market order size %s for %s", q, maxQty, i.Symbol))
	}
	if step, err := decimal.NewFromString(filter.QtyStep); err == nil && step.IsPositive() && !q.Mod(step).IsZero() {
		problems = append(problems, fmt.Sprintf("Quantity %s is not a multiple of lot step %s for %s", q, step, i.Symbol))
	}
	return problems
}

// InstrumentCache keeps instrument definitions for ttl so a check does not
// cost a request per signal.
type InstrumentCache struct {
	client *Client
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedInstrument
}

type cachedInstrument struct {
	info    *InstrumentInfo
	fetched time.Time
}

// NewInstrumentCache caches definitions fetched through client.
func NewInstrumentCache(client *Client, ttl time.Duration) *InstrumentCache {
	return &InstrumentCache{
		client:  client,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedInstrument),
	}
}

// Instrument returns the cached definition of symbol, refreshing it once
// it is older than the cache's ttl.
func (ic *InstrumentCache) Instrument(ctx context.Context, symbol string) (*InstrumentInfo, error) {
	ic.mu.RLock()
	entry, ok := ic.entries[symbol]
	ic.mu.RUnlock()
	if ok && ic.now().Sub(entry.fetched) < ic.ttl {
		return entry.info, nil
	}

	info, err := ic.client.GetInstrumentInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("instrument %s is not listed", symbol)
	}

	ic.mu.Lock()
	ic.entries[symbol] = cachedInstrument{info: info, fetched: ic.now()}
	ic.mu.Unlock()
	return info, nil
}

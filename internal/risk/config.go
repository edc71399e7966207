package risk

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TradingHours is a UTC hour-of-day window, start inclusive and end exclusive.
type TradingHours struct {
	Start int `json:"start" validate:"gte=0,lte=24"`
	End   int `json:"end" validate:"gte=0,lte=24,gtefield=Start"`
}

// Config holds the risk policy applied to every trade. Percentages are
// expressed as 2 for 2%, balances in USDT.
type Config struct {
	MaxRiskPerTrade       float64      `json:"maxRiskPerTrade" validate:"gt=0,lte=100"`
	MaxDailyLoss          float64      `json:"maxDailyLoss" validate:"gt=0,lte=100"`
	MaxPositionsPerSymbol int          `json:"maxPositionsPerSymbol" validate:"gte=1"`
	MaxTotalPositions     int          `json:"maxTotalPositions" validate:"gte=1"`
	MinAccountBalance     float64      `json:"minAccountBalance" validate:"gte=0"`
	AllowedSymbols        []string     `json:"allowedSymbols" validate:"required,min=1,dive,required"`
	TradingHours          TradingHours `json:"tradingHours"`
}

// DefaultConfig returns the default risk policy
func DefaultConfig() Config {
	return Config{
		MaxRiskPerTrade:       2,
		MaxDailyLoss:          10,
		MaxPositionsPerSymbol: 1,
		MaxTotalPositions:     3,
		MinAccountBalance:     100,
		AllowedSymbols:        []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "ADAUSDT", "DOTUSDT"},
		TradingHours:          TradingHours{Start: 0, End: 24},
	}
}

// Option overrides one field of the default policy.
type Option func(*Config)

// WithMaxRiskPerTrade sets the percent of balance risked per trade (default 2).
func WithMaxRiskPerTrade(percent float64) Option {
	return func(c *Config) { c.MaxRiskPerTrade = percent }
}

// WithMaxDailyLoss sets the daily loss limit in percent (default 10).
func WithMaxDailyLoss(percent float64) Option {
	return func(c *Config) { c.MaxDailyLoss = percent }
}

// WithMaxPositionsPerSymbol sets the open position cap per symbol (default 1).
func WithMaxPositionsPerSymbol(n int) Option {
	return func(c *Config) { c.MaxPositionsPerSymbol = n }
}

// WithMaxTotalPositions sets the open position cap across symbols (default 3).
func WithMaxTotalPositions(n int) Option {
	return func(c *Config) { c.MaxTotalPositions = n }
}

// WithMinAccountBalance sets the minimum USDT balance required to trade (default 100).
func WithMinAccountBalance(balance float64) Option {
	return func(c *Config) { c.MinAccountBalance = balance }
}

// WithAllowedSymbols replaces the symbol allow-list. Symbols are upper-cased.
func WithAllowedSymbols(symbols ...string) Option {
	return func(c *Config) {
		allowed := make([]string, 0, len(symbols))
		for _, s := range symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				allowed = append(allowed, s)
			}
		}
		c.AllowedSymbols = allowed
	}
}

// WithTradingHours sets the UTC trading window (default 0-24).
func WithTradingHours(start, end int) Option {
	return func(c *Config) { c.TradingHours = TradingHours{Start: start, End: end} }
}

// NewConfig applies opts over DefaultConfig and validates the result.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the policy for out of range values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid risk config: %w", err)
	}
	return nil
}

func (c Config) isSymbolAllowed(symbol string) bool {
	symbol = strings.ToUpper(symbol)
	for _, s := range c.AllowedSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

func (c Config) withinTradingHours(hour int) bool {
	return hour >= c.TradingHours.Start && hour < c.TradingHours.End
}

package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ManagerPerAccount(t *testing.T) {
	registry := NewRegistry(DefaultConfig())

	ftmo := registry.Get("ftmo")
	assert.Same(t, ftmo, registry.Get(" FTMO "))
	assert.NotSame(t, ftmo, registry.Get("main"))
	assert.Same(t, registry.Get(""), registry.Get(DefaultAccount))

	assert.Equal(t, []string{DefaultAccount, "FTMO", "MAIN"}, registry.Accounts())
}

func TestRegistry_StatsSurviveAcrossLookups(t *testing.T) {
	registry := NewRegistry(DefaultConfig())

	registry.Get("ftmo").UpdateDailyStats(-25, 1)
	registry.Get("FTMO").UpdateDailyStats(-25, 1)

	stats := registry.Get("Ftmo").DailyStats()
	assert.Equal(t, 2, stats.TradesCount)
	assert.Equal(t, -50.0, stats.PnL)
	assert.Equal(t, 0, registry.Get("other").DailyStats().TradesCount)
}

func TestNewConfig(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		cfg, err := NewConfig()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
		assert.Equal(t, 3, cfg.MaxTotalPositions)
		assert.Len(t, cfg.AllowedSymbols, 5)
	})

	t.Run("options override defaults", func(t *testing.T) {
		cfg, err := NewConfig(
			WithMaxRiskPerTrade(1),
			WithMaxDailyLoss(5),
			WithMaxPositionsPerSymbol(2),
			WithMaxTotalPositions(4),
			WithMinAccountBalance(500),
			WithAllowedSymbols(" btcusdt ", "", "ethusdt"),
			WithTradingHours(8, 20),
		)
		require.NoError(t, err)
		assert.Equal(t, Config{
			MaxRiskPerTrade:       1,
			MaxDailyLoss:          5,
			MaxPositionsPerSymbol: 2,
			MaxTotalPositions:     4,
			MinAccountBalance:     500,
			AllowedSymbols:        []string{"BTCUSDT", "ETHUSDT"},
			TradingHours:          TradingHours{Start: 8, End: 20},
		}, cfg)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		invalid := map[string]Option{
			"zero risk":        WithMaxRiskPerTrade(0),
			"loss over 100":    WithMaxDailyLoss(150),
			"no symbols":       WithAllowedSymbols(),
			"inverted hours":   WithTradingHours(20, 8),
			"hour out of day":  WithTradingHours(0, 25),
			"zero total limit": WithMaxTotalPositions(0),
		}
		for name, opt := range invalid {
			_, err := NewConfig(opt)
			assert.Error(t, err, name)
		}
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/webhook-bridge/internal/risk"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Bybit.Testnet)
	assert.False(t, cfg.Bybit.Demo)
	assert.Zero(t, cfg.Bybit.ReadRetries)
	assert.False(t, cfg.Bybit.CheckLotSize)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Server.RequireTokenForBybit)
	assert.Equal(t, 1000, cfg.Server.JournalCapacity)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Redis.URL)
	assert.False(t, cfg.Telegram.Enabled())

	riskCfg, err := cfg.RiskConfig()
	require.NoError(t, err)
	assert.Equal(t, risk.DefaultConfig(), riskCfg)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "key")
	t.Setenv("BYBIT_API_SECRET", "secret")
	t.Setenv("BYBIT_TESTNET", "false")
	t.Setenv("BYBIT_CHECK_LOT_SIZE", "true")
	t.Setenv("MAX_RISK_PER_TRADE", "1.5")
	t.Setenv("MAX_DAILY_LOSS", "5")
	t.Setenv("ALLOWED_SYMBOLS", "btcusdt, xrpusdt")
	t.Setenv("TRADING_HOURS_START", "8")
	t.Setenv("TRADING_HOURS_END", "20")
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("REQUIRE_TOKEN_FOR_BYBIT", "false")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("TELEGRAM_TOKEN", "tg")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, BybitConfig{APIKey: "key", APISecret: "secret", CheckLotSize: true}, cfg.Bybit)
	assert.Equal(t, "s3cret", cfg.Server.WebhookSecret)
	assert.False(t, cfg.Server.RequireTokenForBybit)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.True(t, cfg.Telegram.Enabled())

	riskCfg, err := cfg.RiskConfig()
	require.NoError(t, err)
	assert.Equal(t, 1.5, riskCfg.MaxRiskPerTrade)
	assert.Equal(t, 5.0, riskCfg.MaxDailyLoss)
	assert.Equal(t, []string{"BTCUSDT", "XRPUSDT"}, riskCfg.AllowedSymbols)
	assert.Equal(t, risk.TradingHours{Start: 8, End: 20}, riskCfg.TradingHours)
}

func TestLoad_ConfigFileUnderEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7070"
risk:
  max_total_positions: 5
  allowed_symbols:
    - ethusdt
log:
  level: debug
`), 0o644))
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "error", cfg.Log.Level)

	riskCfg, err := cfg.RiskConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, riskCfg.MaxTotalPositions)
	assert.Equal(t, []string{"ETHUSDT"}, riskCfg.AllowedSymbols)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"risk above 100", "MAX_RISK_PER_TRADE", "150"},
		{"zero daily loss", "MAX_DAILY_LOSS", "0"},
		{"hours reversed", "TRADING_HOURS_START", "30"},
		{"unknown log level", "LOG_LEVEL", "chatty"},
		{"too many retries", "BYBIT_READ_RETRIES", "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "WEBHOOK_BRIDGE_ENV_FILE_TEST"
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "absent.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o644))
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv(key))
}

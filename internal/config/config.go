package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ducminhle1904/webhook-bridge/internal/risk"
)

var validate = validator.New()

// Config is the complete runtime configuration of the bridge.
type Config struct {
	Bybit    BybitConfig    `mapstructure:"bybit"`
	Risk     RiskConfig     `mapstructure:"risk"`
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type BybitConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Testnet   bool   `mapstructure:"testnet"`
	Demo      bool   `mapstructure:"demo"`

	// ReadRetries is how often a failed GET is retried. Orders are never retried.
	ReadRetries int `mapstructure:"read_retries" validate:"gte=0,lte=5"`
	// CheckLotSize warns when a calculated size does not fit the
	// instrument's lot filter. Sizes are never rounded to it.
	CheckLotSize bool `mapstructure:"check_lot_size"`
}

// RiskConfig mirrors risk.Config in the units operators type: percentages
// as 2 for 2%, hours as UTC hour of day.
type RiskConfig struct {
	MaxRiskPerTrade       float64  `mapstructure:"max_risk_per_trade"`
	MaxDailyLoss          float64  `mapstructure:"max_daily_loss"`
	MaxPositionsPerSymbol int      `mapstructure:"max_positions_per_symbol"`
	MaxTotalPositions     int      `mapstructure:"max_total_positions"`
	MinAccountBalance     float64  `mapstructure:"min_account_balance"`
	AllowedSymbols        []string `mapstructure:"allowed_symbols"`
	TradingHoursStart     int      `mapstructure:"trading_hours_start"`
	TradingHoursEnd       int      `mapstructure:"trading_hours_end"`
}

type ServerConfig struct {
	Addr                 string `mapstructure:"addr" validate:"required"`
	WebhookSecret        string `mapstructure:"webhook_secret"`
	RequireTokenForBybit bool   `mapstructure:"require_token_for_bybit"`
	JournalCapacity      int    `mapstructure:"journal_capacity" validate:"gte=1"`
}

// RedisConfig selects the signal queue backend. An empty URL keeps the
// queue in memory.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	File  string `mapstructure:"file"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID string `mapstructure:"chat_id"`
}

// Enabled reports whether both Telegram credentials are set.
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

type setting struct {
	key   string
	env   string
	value interface{}
}

// settings binds every key to its environment variable and default.
var settings = []setting{
	{"bybit.api_key", "BYBIT_API_KEY", ""},
	{"bybit.api_secret", "BYBIT_API_SECRET", ""},
	{"bybit.testnet", "BYBIT_TESTNET", true},
	{"bybit.demo", "BYBIT_DEMO", false},
	{"bybit.read_retries", "BYBIT_READ_RETRIES", 0},
	{"bybit.check_lot_size", "BYBIT_CHECK_LOT_SIZE", false},

	{"risk.max_risk_per_trade", "MAX_RISK_PER_TRADE", risk.DefaultConfig().MaxRiskPerTrade},
	{"risk.max_daily_loss", "MAX_DAILY_LOSS", risk.DefaultConfig().MaxDailyLoss},
	{"risk.max_positions_per_symbol", "MAX_POSITIONS_PER_SYMBOL", risk.DefaultConfig().MaxPositionsPerSymbol},
	{"risk.max_total_positions", "MAX_TOTAL_POSITIONS", risk.DefaultConfig().MaxTotalPositions},
	{"risk.min_account_balance", "MIN_ACCOUNT_BALANCE", risk.DefaultConfig().MinAccountBalance},
	{"risk.allowed_symbols", "ALLOWED_SYMBOLS", risk.DefaultConfig().AllowedSymbols},
	{"risk.trading_hours_start", "TRADING_HOURS_START", risk.DefaultConfig().TradingHours.Start},
	{"risk.trading_hours_end", "TRADING_HOURS_END", risk.DefaultConfig().TradingHours.End},

	{"server.addr", "HTTP_ADDR", ":8080"},
	{"server.webhook_secret", "WEBHOOK_SECRET", ""},
	{"server.require_token_for_bybit", "REQUIRE_TOKEN_FOR_BYBIT", true},
	{"server.journal_capacity", "JOURNAL_CAPACITY", 1000},

	{"redis.url", "REDIS_URL", ""},

	{"log.level", "LOG_LEVEL", "info"},
	{"log.file", "LOG_FILE", ""},

	{"telegram.token", "TELEGRAM_TOKEN", ""},
	{"telegram.chat_id", "TELEGRAM_CHAT_ID", ""},
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. A missing file is not an error; variables already set win.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from defaults, an optional config file and
// the environment, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.value)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", s.env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Risk.AllowedSymbols = splitSymbols(cfg.Risk.AllowedSymbols)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the loaded values, including the risk policy.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.RiskConfig(); err != nil {
		return err
	}
	return nil
}

// RiskConfig builds the risk policy from the loaded values.
func (c *Config) RiskConfig() (risk.Config, error) {
	r := c.Risk
	return risk.NewConfig(
		risk.WithMaxRiskPerTrade(r.MaxRiskPerTrade),
		risk.WithMaxDailyLoss(r.MaxDailyLoss),
		risk.WithMaxPositionsPerSymbol(r.MaxPositionsPerSymbol),
		risk.WithMaxTotalPositions(r.MaxTotalPositions),
		risk.WithMinAccountBalance(r.MinAccountBalance),
		risk.WithAllowedSymbols(r.AllowedSymbols...),
		risk.WithTradingHours(r.TradingHoursStart, r.TradingHoursEnd),
	)
}

// splitSymbols accepts both list values and a single comma separated entry.
func splitSymbols(symbols []string) []string {
	var out []string
	for _, s := range symbols {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

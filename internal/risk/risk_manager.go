package risk

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// MinPositionSize is the size below which a trade draws a warning.
	MinPositionSize = 0.01
	// MaxPositionPercent caps the notional of a new trade as percent of balance.
	MaxPositionPercent = 50.0
)

// Manager applies a risk Config and tracks the daily stats of one account.
// It is safe for concurrent use.
type Manager struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	stats DailyStats
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithClock sets the time source used for trading hours and daily resets.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a risk manager instance
func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.stats = DailyStats{LastResetDate: m.today()}
	return m
}

// Config returns the policy the manager enforces.
func (m *Manager) Config() Config {
	return m.cfg
}

func (m *Manager) today() string {
	return m.now().UTC().Format(time.DateOnly)
}

// resetDailyStatsIfNeeded must be called with mu held.
func (m *Manager) resetDailyStatsIfNeeded() {
	today := m.today()
	if m.stats.LastResetDate == today {
		return
	}
	m.logger.Info("resetting daily risk stats",
		zap.String("previous_date", m.stats.LastResetDate),
		zap.Int("trades", m.stats.TradesCount),
		zap.Float64("pnl", m.stats.PnL))
	m.stats = DailyStats{LastResetDate: today}
}

// ValidateTrade evaluates every rule against trade and reports all
// violations at once. When entry and stop prices are set, trade.CalculatedSize
// receives the risk-based size.
func (m *Manager) ValidateTrade(trade *TradeProposal, currentBalance float64, currentPositions []Position) ValidationResult {
	m.mu.Lock()
	m.resetDailyStatsIfNeeded()
	dailyPnL := m.stats.PnL
	m.mu.Unlock()

	errs := []string{}
	warnings := []string{}

	if currentBalance < m.cfg.MinAccountBalance {
		errs = append(errs, fmt.Sprintf("Insufficient balance: %s < %s",
			formatNumber(currentBalance), formatNumber(m.cfg.MinAccountBalance)))
	}

	if !m.cfg.isSymbolAllowed(trade.Symbol) {
		errs = append(errs, fmt.Sprintf("Symbol %s not in allowed list", trade.Symbol))
	}

	if !m.cfg.withinTradingHours(m.now().UTC().Hour()) {
		errs = append(errs, "Outside trading hours")
	}

	dailyLossPercent := dailyPnL / currentBalance * 100
	if dailyLossPercent <= -m.cfg.MaxDailyLoss {
		errs = append(errs, fmt.Sprintf("Daily loss limit reached: %.2f%%", dailyLossPercent))
	}

	var symbolPositions, totalPositions int
	for _, p := range currentPositions {
		if !p.IsOpen() {
			continue
		}
		totalPositions++
		if p.Symbol == trade.Symbol {
			symbolPositions++
		}
	}
	if symbolPositions >= m.cfg.MaxPositionsPerSymbol {
		errs = append(errs, fmt.Sprintf("Max positions reached for %s: %d", trade.Symbol, symbolPositions))
	}
	if totalPositions >= m.cfg.MaxTotalPositions {
		errs = append(errs, fmt.Sprintf("Max total positions reached: %d", totalPositions))
	}

	if trade.EntryPrice != 0 && trade.StopLossPrice != 0 {
		strength := trade.SignalStrength
		if strength == 0 {
			strength = 1
		}

		size, err := m.CalculatePositionSize(currentBalance, trade.EntryPrice, trade.StopLossPrice, strength)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Position size calculation failed: %v", err))
		} else {
			if size < MinPositionSize {
				warnings = append(warnings, fmt.Sprintf("Position size very small: %s", formatNumber(size)))
			}

			positionPercent := size * trade.EntryPrice / currentBalance * 100
			if positionPercent > MaxPositionPercent {
				errs = append(errs, fmt.Sprintf("Position too large: %.2f%% of balance", positionPercent))
			}

			trade.CalculatedSize = &size
		}
	}

	if s := trade.SignalStrength; s != 0 && (s < 1 || s > 5) {
		warnings = append(warnings, fmt.Sprintf("Invalid signal strength: %s", formatNumber(s)))
	}

	if len(errs) > 0 {
		m.logger.Debug("trade rejected by risk rules",
			zap.String("symbol", trade.Symbol),
			zap.Strings("errors", errs))
	}

	return ValidationResult{
		IsValid:       len(errs) == 0,
		Errors:        errs,
		Warnings:      warnings,
		AdjustedTrade: trade,
	}
}

// GetRiskMetrics reports exposure and drawdown in percent against
// currentBalance and initialBalance, plus today's stats. Exposure counts the
// absolute size of every position.
func (m *Manager) GetRiskMetrics(currentBalance, initialBalance float64, currentPositions []Position) RiskMetrics {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	totalValue := decimal.Zero
	openPositions := 0
	for _, p := range currentPositions {
		value := decimal.NewFromFloat(math.Abs(p.Size)).Mul(decimal.NewFromFloat(p.price()))
		totalValue = totalValue.Add(value)
		if p.IsOpen() {
			openPositions++
		}
	}

	exposure := decimal.Zero
	if currentBalance != 0 {
		exposure = totalValue.Div(decimal.NewFromFloat(currentBalance)).Mul(hundred)
	}

	drawdown := decimal.Zero
	if initialBalance != 0 {
		initial := decimal.NewFromFloat(initialBalance)
		drawdown = initial.Sub(decimal.NewFromFloat(currentBalance)).Div(initial).Mul(hundred)
	}

	return RiskMetrics{
		Exposure:      exposure.StringFixed(2),
		Drawdown:      drawdown.StringFixed(2),
		DailyPnL:      decimal.NewFromFloat(stats.PnL).StringFixed(2),
		DailyTrades:   stats.TradesCount,
		OpenPositions: openPositions,
	}
}

// ShouldTriggerEmergencyStop reports whether the loss from initialBalance has
// reached MaxDailyLoss percent. It never acts on its own.
func (m *Manager) ShouldTriggerEmergencyStop(currentBalance, initialBalance float64) bool {
	if initialBalance <= 0 {
		return false
	}
	totalLoss := (initialBalance - currentBalance) / initialBalance * 100
	return totalLoss >= m.cfg.MaxDailyLoss
}

// UpdateDailyStats records a confirmed fill. Callers pass tradesCount 1 for
// a single fill.
func (m *Manager) UpdateDailyStats(pnl float64, tradesCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetDailyStatsIfNeeded()
	m.stats.PnL += pnl
	m.stats.TradesCount += tradesCount
}

// DailyStats returns a snapshot of today's stats.
func (m *Manager) DailyStats() DailyStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetDailyStatsIfNeeded()
	return m.stats
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package relay

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/ducminhle1904/webhook-bridge/internal/errors"
	"github.com/ducminhle1904/webhook-bridge/internal/exchange/bybit"
	"github.com/ducminhle1904/webhook-bridge/internal/journal"
	"github.com/ducminhle1904/webhook-bridge/internal/monitoring"
	"github.com/ducminhle1904/webhook-bridge/internal/notifications"
	"github.com/ducminhle1904/webhook-bridge/internal/risk"
)

// ErrMarketDataUnavailable is returned when the wallet balance or the last
// price resolves to zero.
var ErrMarketDataUnavailable = stderrors.New("unable to get balance or price information")

const (
	// StopLossPercent is the fallback stop distance when a signal has no stop.
	StopLossPercent = 2.0
	// ATRMultiplier scales the signal's ATR into a stop distance.
	ATRMultiplier = 2.0
)

// Exchange is the subset of the Bybit client the processor trades through.
type Exchange interface {
	GetBalance(ctx context.Context) ([]bybit.CoinBalance, error)
	GetPositions(ctx context.Context, symbol string) ([]bybit.Position, error)
	GetTicker(ctx context.Context, symbol string) (*bybit.Ticker, error)
	PlaceOrder(ctx context.Context, symbol string, side bybit.OrderSide, qty float64, opts ...bybit.OrderOption) (*bybit.OrderResult, error)
	CloseOpenPosition(ctx context.Context, position bybit.Position) (*bybit.OrderResult, error)
	SetTradingStop(ctx context.Context, symbol string, side bybit.OrderSide, stopLoss, takeProfit float64) error
}

// InstrumentLookup resolves the lot size filter of a symbol.
type InstrumentLookup interface {
	Instrument(ctx context.Context, symbol string) (*bybit.InstrumentInfo, error)
}

// Processor turns signals into risk-checked orders for one exchange account.
type Processor struct {
	exchange    Exchange
	instruments InstrumentLookup
	risk        *risk.Registry
	logger      *zap.Logger
	notifier    notifications.Notifier
	journal     *journal.Journal
	now         func() time.Time

	mu        sync.Mutex
	baselines map[string]float64
}

// Option customizes a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithNotifier sets where trade and risk alerts go.
func WithNotifier(notifier notifications.Notifier) Option {
	return func(p *Processor) { p.notifier = notifier }
}

// WithJournal records every outcome in j.
func WithJournal(j *journal.Journal) Option {
	return func(p *Processor) { p.journal = j }
}

// WithInstruments checks calculated sizes against the instrument's lot
// size filter. Mismatches are reported as warnings; the order still goes
// out with the calculated size.
func WithInstruments(lookup InstrumentLookup) Option {
	return func(p *Processor) { p.instruments = lookup }
}

// WithClock sets the time source for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a processor trading through exchange under the
// managers of registry.
func NewProcessor(exchange Exchange, registry *risk.Registry, opts ...Option) *Processor {
	p := &Processor{
		exchange:  exchange,
		risk:      registry,
		logger:    zap.NewNop(),
		notifier:  notifications.NoopNotifier{},
		journal:   journal.New(journal.DefaultCapacity),
		now:       time.Now,
		baselines: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Journal returns the journal outcomes are recorded in.
func (p *Processor) Journal() *journal.Journal {
	return p.journal
}

type marketSnapshot struct {
	balance   float64
	price     float64
	positions []bybit.Position
}

// snapshot reads balance, positions and ticker concurrently.
func (p *Processor) snapshot(ctx context.Context, symbol string) (*marketSnapshot, error) {
	var (
		snap   marketSnapshot
		ticker *bybit.Ticker
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		coins, err := p.exchange.GetBalance(gctx)
		if err != nil {
			return err
		}
		snap.balance = bybit.FindCoin(coins, bybit.SettleCoinUSDT)
		return nil
	})
	g.Go(func() error {
		positions, err := p.exchange.GetPositions(gctx, symbol)
		if err != nil {
			return err
		}
		snap.positions = positions
		return nil
	})
	g.Go(func() error {
		t, err := p.exchange.GetTicker(gctx, symbol)
		if err != nil {
			return err
		}
		ticker = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.price = ticker.LastPriceValue()
	if snap.balance == 0 || snap.price == 0 {
		return nil, apperrors.NewMarketDataError("relay", "snapshot", ErrMarketDataUnavailable)
	}
	return &snap, nil
}

// Process handles one signal for account. Exchange and market data faults
// are returned as errors; a trade refused by risk rules is returned as a
// rejected Outcome.
func (p *Processor) Process(ctx context.Context, account string, signal risk.Signal) (*Outcome, error) {
	account = risk.NormalizeAccount(account)
	manager := p.risk.Get(account)
	processed := manager.ProcessSignal(signal)
	symbol := processed.Symbol

	log := p.logger.With(
		zap.String("account", account),
		zap.String("symbol", symbol),
		zap.String("action", string(processed.Action)),
		zap.Float64("signal_strength", processed.SignalStrength))
	log.Info("processing signal")
	monitoring.RecordSignal(account, string(processed.Action))

	snap, err := p.snapshot(ctx, symbol)
	if err != nil {
		return nil, p.fail(ctx, log, account, processed, "snapshot", err)
	}
	monitoring.UpdatePrice(symbol, snap.price)
	positions := riskPositions(snap.positions)

	var outcome *Outcome
	switch processed.Action {
	case risk.ActionClose:
		outcome, err = p.closeAll(ctx, log, manager, symbol, snap.positions)
	case risk.ActionBuy, risk.ActionSell:
		outcome, err = p.open(ctx, log, manager, processed, snap, positions)
	default:
		outcome = p.hold(processed)
	}
	if err != nil {
		return nil, p.fail(ctx, log, account, processed, string(processed.Action), err)
	}

	outcome.Timestamp = p.timestamp()
	if outcome.Rejected {
		p.record(account, processed, outcome)
		return outcome, nil
	}

	metrics := manager.GetRiskMetrics(snap.balance, snap.balance, positions)
	outcome.RiskMetrics = &metrics
	outcome.EmergencyStop = p.checkEmergencyStop(ctx, log, manager, account, snap.balance)
	outcome.OK = true

	p.record(account, processed, outcome)
	return outcome, nil
}

func (p *Processor) closeAll(ctx context.Context, log *zap.Logger, manager *risk.Manager, symbol string, positions []bybit.Position) (*Outcome, error) {
	closed := 0
	for _, position := range positions {
		size := position.SizeValue()
		if size == 0 {
			continue
		}

		side := bybit.OrderSide(position.Side).Opposite()
		order, err := p.exchange.CloseOpenPosition(ctx, position)
		if err != nil {
			return nil, fmt.Errorf("failed to close %s position: %w", symbol, err)
		}
		closed++

		log.Info("position closed",
			zap.String("order_id", order.OrderID),
			zap.String("side", string(side)),
			zap.Int("position_idx", position.PositionIdx),
			zap.Float64("size", size))
		monitoring.RecordTrade(symbol, string(side), size)
		manager.UpdateDailyStats(parseFloat(position.UnrealisedPnl), 1)
	}

	if closed > 0 {
		p.notify(ctx, notifications.LevelInfo, fmt.Sprintf("Closed %d positions for %s", closed, symbol))
	}

	return &Outcome{
		Action:          ActionCloseAll,
		Symbol:          symbol,
		ClosedPositions: &closed,
		Message:         fmt.Sprintf("Closed %d positions for %s", closed, symbol),
	}, nil
}

func (p *Processor) open(ctx context.Context, log *zap.Logger, manager *risk.Manager, processed risk.ProcessedSignal, snap *marketSnapshot, positions []risk.Position) (*Outcome, error) {
	symbol := processed.Symbol
	stopLoss := stopLossPrice(processed.OriginalSignal, processed.Action, snap.price)

	trade := &risk.TradeProposal{
		Symbol:         symbol,
		Action:         processed.Action,
		EntryPrice:     snap.price,
		StopLossPrice:  stopLoss,
		SignalStrength: processed.SignalStrength,
	}
	validation := manager.ValidateTrade(trade, snap.balance, positions)
	if !validation.IsValid {
		log.Warn("trade validation failed", zap.Strings("errors", validation.Errors))
		monitoring.RecordRejection(symbol)
		return &Outcome{
			Error:    ValidationFailedMessage,
			Errors:   validation.Errors,
			Warnings: validation.Warnings,
			Rejected: true,
		}, nil
	}
	if trade.CalculatedSize == nil {
		return nil, fmt.Errorf("no position size calculated for %s", symbol)
	}

	side := bybit.OrderSideBuy
	if processed.Action == risk.ActionSell {
		side = bybit.OrderSideSell
	}
	quantity := *trade.CalculatedSize
	warnings := append([]string(nil), validation.Warnings...)
	warnings = append(warnings, p.lotSizeWarnings(ctx, log, symbol, quantity)...)

	order, err := p.exchange.PlaceOrder(ctx, symbol, side, quantity)
	if err != nil {
		return nil, err
	}
	monitoring.RecordTrade(symbol, string(side), quantity)
	manager.UpdateDailyStats(0, 1)

	log.Info("order placed",
		zap.String("order_id", order.OrderID),
		zap.String("side", string(side)),
		zap.Float64("quantity", quantity),
		zap.Float64("price", snap.price),
		zap.Float64("stop_loss", stopLoss))

	if order.OrderID != "" {
		if err := p.exchange.SetTradingStop(ctx, symbol, side, stopLoss, 0); err != nil {
			log.Warn("failed to set stop loss", zap.Error(err))
			monitoring.RecordError(string(apperrors.CategoryOf(err)))
			warnings = append(warnings, fmt.Sprintf("Failed to set stop loss: %v", err))
			p.notify(ctx, notifications.LevelWarning,
				fmt.Sprintf("%s %s %s filled without stop loss at %s: %v", side, formatNumber(quantity), symbol, formatNumber(stopLoss), err))
		}
	}

	p.notify(ctx, notifications.LevelSuccess,
		fmt.Sprintf("%s %s %s @ %s (SL %s)", side, formatNumber(quantity), symbol, formatNumber(snap.price), formatNumber(stopLoss)))

	strength := processed.SignalStrength
	return &Outcome{
		Action:         string(processed.Action),
		OrderID:        order.OrderID,
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		Price:          snap.price,
		StopLoss:       stopLoss,
		SignalStrength: &strength,
		Validation:     &ValidationSummary{Warnings: warnings},
	}, nil
}

func (p *Processor) lotSizeWarnings(ctx context.Context, log *zap.Logger, symbol string, quantity float64) []string {
	if p.instruments == nil {
		return nil
	}
	info, err := p.instruments.Instrument(ctx, symbol)
	if err != nil {
		log.Warn("failed to check lot size", zap.Error(err))
		return nil
	}
	problems := info.CheckQty(quantity)
	if len(problems) > 0 {
		log.Warn("order size does not fit lot size filter", zap.Strings("problems", problems))
	}
	return problems
}

func (p *Processor) hold(processed risk.ProcessedSignal) *Outcome {
	strength := processed.SignalStrength
	return &Outcome{
		Action:         string(risk.ActionHold),
		Message:        "Signal not strong enough for trade execution",
		SignalStrength: &strength,
	}
}

// checkEmergencyStop compares balance with the first balance seen for the
// account in this process. The result is reported and alerted, never acted on.
func (p *Processor) checkEmergencyStop(ctx context.Context, log *zap.Logger, manager *risk.Manager, account string, balance float64) bool {
	p.mu.Lock()
	baseline, ok := p.baselines[account]
	if !ok {
		p.baselines[account] = balance
		baseline = balance
	}
	p.mu.Unlock()

	if !manager.ShouldTriggerEmergencyStop(balance, baseline) {
		return false
	}
	log.Warn("emergency stop condition reached",
		zap.Float64("balance", balance),
		zap.Float64("baseline", baseline))
	p.notify(ctx, notifications.LevelError,
		fmt.Sprintf("Emergency stop condition on %s: balance %s vs session start %s", account, formatNumber(balance), formatNumber(baseline)))
	return true
}

func (p *Processor) fail(ctx context.Context, log *zap.Logger, account string, processed risk.ProcessedSignal, operation string, err error) error {
	categorized := apperrors.CategorizeError(err, "relay", operation)
	log.Error("signal processing failed",
		zap.String("category", string(categorized.Category)),
		zap.Error(err))
	monitoring.RecordError(string(categorized.Category))
	p.notify(ctx, notifications.LevelError, fmt.Sprintf("%s %s failed: %v", processed.Action, processed.Symbol, err))

	p.record(account, processed, &Outcome{
		Symbol:    processed.Symbol,
		Error:     err.Error(),
		Timestamp: p.timestamp(),
	})
	return categorized
}

func (p *Processor) notify(ctx context.Context, level, message string) {
	if err := p.notifier.SendAlert(ctx, level, message); err != nil {
		p.logger.Warn("failed to send notification", zap.Error(err))
	}
}

func (p *Processor) record(account string, processed risk.ProcessedSignal, outcome *Outcome) {
	entry := journal.Entry{
		Time:           p.now(),
		Account:        account,
		Symbol:         processed.Symbol,
		Action:         string(processed.Action),
		Side:           string(outcome.Side),
		OrderID:        outcome.OrderID,
		Quantity:       outcome.Quantity,
		Price:          outcome.Price,
		StopLoss:       outcome.StopLoss,
		SignalStrength: processed.SignalStrength,
	}

	switch {
	case outcome.Error != "" && outcome.Rejected:
		entry.Status = journal.StatusRejected
		entry.Notes = append(append(entry.Notes, outcome.Errors...), outcome.Warnings...)
	case outcome.Error != "":
		entry.Status = journal.StatusFailed
		entry.Notes = []string{outcome.Error}
	case outcome.Action == ActionCloseAll:
		entry.Status = journal.StatusClosed
		entry.Notes = []string{outcome.Message}
	case outcome.Action == string(risk.ActionHold):
		entry.Status = journal.StatusHold
	default:
		entry.Status = journal.StatusExecuted
		if outcome.Validation != nil {
			entry.Notes = outcome.Validation.Warnings
		}
	}
	p.journal.Record(entry)
}

func (p *Processor) timestamp() string {
	return p.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// stopLossPrice prefers an explicit stop, then an ATR based one, then a
// fixed percentage from price.
func stopLossPrice(signal risk.Signal, action risk.Action, price float64) float64 {
	if signal.ATRStop != nil && *signal.ATRStop > 0 {
		return *signal.ATRStop
	}
	if signal.ATR != nil && *signal.ATR > 0 {
		return risk.CalculateStopLoss(price, action, *signal.ATR, ATRMultiplier)
	}
	return risk.PercentStopLoss(price, action, StopLossPercent)
}

func riskPositions(positions []bybit.Position) []risk.Position {
	out := make([]risk.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, risk.Position{
			Symbol:    p.Symbol,
			Size:      p.SignedSize(),
			MarkPrice: p.MarkPriceValue(),
			AvgPrice:  p.AvgPriceValue(),
		})
	}
	return out
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Signal metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_bridge_signals_total",
			Help: "Total number of processed signals by resulting action",
		},
		[]string{"account", "action"},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_bridge_rejections_total",
			Help: "Total number of trades rejected by risk validation",
		},
		[]string{"symbol"},
	)

	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_bridge_trades_total",
			Help: "Total number of orders placed",
		},
		[]string{"symbol", "side"},
	)

	tradeQuantity = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_bridge_trade_quantity",
			Help:    "Distribution of order quantities",
			Buckets: prometheus.ExponentialBuckets(0.001, 10, 7),
		},
		[]string{"symbol"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "webhook_bridge_current_price",
			Help: "Last traded price seen for a symbol",
		},
		[]string{"symbol"},
	)

	// Queue metrics
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "webhook_bridge_queue_depth",
			Help: "Signals waiting in an account queue",
		},
		[]string{"account"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_bridge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(rejectionsTotal)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(tradeQuantity)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordSignal counts a processed signal
func RecordSignal(account, action string) {
	signalsTotal.WithLabelValues(account, action).Inc()
}

// RecordRejection counts a trade refused by risk validation
func RecordRejection(symbol string) {
	rejectionsTotal.WithLabelValues(symbol).Inc()
}

// RecordTrade records a trade metric
func RecordTrade(symbol, side string, quantity float64) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
	tradeQuantity.WithLabelValues(symbol).Observe(quantity)
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateQueueDepth sets the number of pending signals for an account
func UpdateQueueDepth(account string, depth int64) {
	queueDepth.WithLabelValues(account).Set(float64(depth))
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/ducminhle1904/webhook-bridge/internal/errors"
	"github.com/ducminhle1904/webhook-bridge/internal/exchange/bybit"
	"github.com/ducminhle1904/webhook-bridge/internal/journal"
	"github.com/ducminhle1904/webhook-bridge/internal/queue"
	"github.com/ducminhle1904/webhook-bridge/internal/relay"
	"github.com/ducminhle1904/webhook-bridge/internal/risk"
)

type fakeProcessor struct {
	outcome  *relay.Outcome
	err      error
	accounts []string
	signals  []risk.Signal

	// during runs inside Process before the outcome is returned.
	during func()
	ctxErr error
}

func (f *fakeProcessor) Process(ctx context.Context, account string, signal risk.Signal) (*relay.Outcome, error) {
	f.accounts = append(f.accounts, account)
	f.signals = append(f.signals, signal)
	if f.during != nil {
		f.during()
	}
	f.ctxErr = ctx.Err()
	return f.outcome, f.err
}

type fakePinger bool

func (p fakePinger) Ping(ctx context.Context) bool { return bool(p) }

type failingQueue struct{ queue.Queue }

func (failingQueue) Dequeue(ctx context.Context, account string) (json.RawMessage, error) {
	return nil, errors.New("store offline")
}

func (failingQueue) Len(ctx context.Context, account string) (int64, error) {
	return 0, errors.New("store offline")
}

type testServer struct {
	*Server
	queue     *queue.MemoryQueue
	processor *fakeProcessor
	journal   *journal.Journal
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		queue:     queue.NewMemoryQueue(),
		processor: &fakeProcessor{outcome: &relay.Outcome{OK: true, Action: "hold", Timestamp: "2024-03-10T12:00:00.000Z"}},
		journal:   journal.New(10),
	}
	ts.Server = New(cfg, Deps{
		Queue:     ts.queue,
		Processor: ts.processor,
		Exchange:  fakePinger(true),
		Journal:   ts.journal,
	})
	ts.Server.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestEnqueueDequeue(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(http.MethodPost, "/enqueue", `{"account":"ftmo","symbol":"EURUSD","action":"buy","lots":0.1}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, float64(1), resp["size"])
	signalID, _ := resp["signalId"].(string)
	assert.Len(t, signalID, 26)

	w = ts.do(http.MethodGet, "/dequeue?account=FTMO", "")
	require.Equal(t, http.StatusOK, w.Code)
	entry := decode(t, w)
	assert.Equal(t, "EURUSD", entry["symbol"])
	assert.Equal(t, 0.1, entry["lots"])
	assert.Equal(t, signalID, entry["signalId"])
	assert.NotNil(t, entry["receivedAt"])

	w = ts.do(http.MethodGet, "/dequeue", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())
}

func TestEnqueue_DefaultAccount(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(http.MethodPost, "/enqueue", `{"symbol":"EURUSD"}`)
	require.Equal(t, http.StatusOK, w.Code)

	n, err := ts.queue.Len(context.Background(), queue.DefaultAccount)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEnqueue_Rejections(t *testing.T) {
	ts := newTestServer(t, Config{WebhookSecret: "s3cret"})

	tests := []struct {
		name   string
		body   string
		status int
		error  string
	}{
		{"invalid json", `{not json`, http.StatusBadRequest, "Invalid JSON"},
		{"json array", `[1,2]`, http.StatusBadRequest, "Invalid JSON"},
		{"missing token", `{"symbol":"EURUSD"}`, http.StatusForbidden, "Bad token"},
		{"wrong token", `{"symbol":"EURUSD","token":"nope"}`, http.StatusForbidden, "Bad token"},
		{"non-string token", `{"symbol":"EURUSD","token":42}`, http.StatusForbidden, "Bad token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, "/enqueue", tt.body)
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.Equal(t, false, resp["ok"])
			assert.Equal(t, tt.error, resp["error"])
		})
	}

	w := ts.do(http.MethodPost, "/enqueue", `{"symbol":"EURUSD","token":"s3cret"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDequeue_StoreFaultReadsAsEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(Config{}, Deps{Queue: failingQueue{}, Exchange: fakePinger(true)})

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dequeue?account=x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", w.Body.String())
}

func TestBybit_Success(t *testing.T) {
	ts := newTestServer(t, Config{})
	strength := 5.0
	ts.processor.outcome = &relay.Outcome{
		OK:             true,
		Action:         "buy",
		OrderID:        "order-1",
		Symbol:         "BTCUSDT",
		Side:           bybit.OrderSideBuy,
		Quantity:       0.03,
		SignalStrength: &strength,
		Timestamp:      "2024-03-10T12:00:00.000Z",
	}

	w := ts.do(http.MethodPost, "/bybit", `{"trendComposite":5,"symbol":"BTCUSDT","account":"main"}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "order-1", resp["orderId"])
	assert.Equal(t, "Buy", resp["side"])

	require.Len(t, ts.processor.signals, 1)
	assert.Equal(t, "main", ts.processor.accounts[0])
	assert.Equal(t, 5.0, *ts.processor.signals[0].TrendComposite)
}

func TestBybit_Rejected(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.processor.outcome = &relay.Outcome{
		Error:     relay.ValidationFailedMessage,
		Errors:    []string{"Outside trading hours"},
		Warnings:  []string{},
		Timestamp: "2024-03-10T12:00:00.000Z",
		Rejected:  true,
	}

	w := ts.do(http.MethodPost, "/bybit", `{"trendComposite":5}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, "Trade validation failed", resp["error"])
	assert.Equal(t, []interface{}{"Outside trading hours"}, resp["errors"])
}

func TestBybit_Faults(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"exchange rejection", apperrors.CategorizeError(bybit.NewBybitError(10001, "params error"), "relay", "buy"), http.StatusInternalServerError},
		{"market data", apperrors.NewMarketDataError("relay", "snapshot", relay.ErrMarketDataUnavailable), http.StatusBadGateway},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, Config{})
			ts.processor.err = tt.err

			w := ts.do(http.MethodPost, "/bybit", `{"trendComposite":5}`)
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.Equal(t, false, resp["ok"])
			assert.Equal(t, tt.err.Error(), resp["error"])
			assert.Equal(t, "2024-03-10T12:00:00.000Z", resp["timestamp"])
		})
	}
}

func TestBybit_RequestChecks(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		body   string
		status int
		error  string
	}{
		{"invalid json", Config{}, `nope`, http.StatusBadRequest, "Invalid JSON"},
		{"missing trend", Config{}, `{"symbol":"BTCUSDT"}`, http.StatusBadRequest, ""},
		{"bad atr stop", Config{}, `{"trendComposite":5,"atr_stop":-1}`, http.StatusBadRequest, ""},
		{"token required", Config{WebhookSecret: "s", RequireTokenForBybit: true}, `{"trendComposite":5}`, http.StatusForbidden, "Bad token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.cfg)

			w := ts.do(http.MethodPost, "/bybit", tt.body)
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.Equal(t, false, resp["ok"])
			if tt.error != "" {
				assert.Equal(t, tt.error, resp["error"])
			} else {
				assert.Contains(t, resp["error"], "Invalid signal")
			}
			assert.Empty(t, ts.processor.signals)
		})
	}
}

func TestBybit_TokenOptional(t *testing.T) {
	ts := newTestServer(t, Config{WebhookSecret: "s", RequireTokenForBybit: false})

	w := ts.do(http.MethodPost, "/bybit", `{"trendComposite":1}`)
	assert.Equal(t, http.StatusOK, w.Code)

	ts = newTestServer(t, Config{WebhookSecret: "s", RequireTokenForBybit: true})
	w = ts.do(http.MethodPost, "/bybit", `{"trendComposite":1,"token":"s"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatus(t *testing.T) {
	for _, healthy := range []bool{true, false} {
		gin.SetMode(gin.TestMode)
		srv := New(Config{Testnet: true}, Deps{Queue: queue.NewMemoryQueue(), Exchange: fakePinger(healthy)})

		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode(t, w)
		assert.Equal(t, healthy, resp["bybit"])
		assert.Equal(t, true, resp["testnet"])
		if healthy {
			assert.Equal(t, "healthy", resp["status"])
		} else {
			assert.Equal(t, "unhealthy", resp["status"])
		}
	}
}

func TestJournalExport(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.journal.Record(journal.Entry{
		Time:    time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		Account: "BYBIT",
		Symbol:  "BTCUSDT",
		Action:  "buy",
		Status:  journal.StatusExecuted,
	})

	w := ts.do(http.MethodGet, "/journal.xlsx", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))

	fx, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer fx.Close()
	rows, err := fx.GetRows("Signals")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestNotFoundAndCORS(t *testing.T) {
	ts := newTestServer(t, Config{})

	w := ts.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodOptions, "/bybit", nil)
	req.Header.Set("Origin", "https://www.tradingview.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	ts.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBybit_ClientDisconnectDoesNotCancelTrading(t *testing.T) {
	ts := newTestServer(t, Config{})

	ctx, hangUp := context.WithCancel(context.Background())
	defer hangUp()
	ts.processor.during = hangUp

	req := httptest.NewRequest(http.MethodPost, "/bybit", strings.NewReader(`{"trendComposite":5}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Error(t, ctx.Err())
	assert.NoError(t, ts.processor.ctxErr)
}

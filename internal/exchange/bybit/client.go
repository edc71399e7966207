package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DemoURL is the Bybit demo trading (paper trading) environment.
const DemoURL = "https://api-demo.bybit.com"

// Client performs signed calls against the Bybit v5 REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	sdk        *bybit_api.Client
	signer     *Signer
	logger     *zap.Logger
	now        func() time.Time
	retry      RetryConfig
	limiter    *rate.Limiter
	testnet    bool
	demo       bool
}

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // Demo trading environment
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the environment derived base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used for signed requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock sets the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Bybit client
func NewClient(config Config, opts ...Option) *Client {
	var baseURL string
	if config.Demo {
		baseURL = DemoURL
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		signer:     NewSigner(config.APIKey, config.APISecret),
		logger:     zap.NewNop(),
		now:        time.Now,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
	for _, opt := range opts {
		opt(c)
	}

	// The SDK client only serves unauthenticated calls; signed calls go through request.
	c.sdk = bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(c.baseURL),
	)

	return c
}

// IsTestnet returns whether the client is configured for testnet
func (c *Client) IsTestnet() bool {
	return c.testnet
}

// IsDemo returns whether the client is configured for demo trading
func (c *Client) IsDemo() bool {
	return c.demo
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	} else {
		return "mainnet"
	}
}

// BaseURL returns the REST endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// send signs and sends one call and returns the envelope's result payload.
func (c *Client) send(ctx context.Context, endpoint, method string, params Params) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Op: method + " " + endpoint, Err: err}
		}
	}

	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)

	payload, err := CanonicalPayload(method, params)
	if err != nil {
		return nil, err
	}
	signature := c.signer.Sign(timestamp, payload)

	reqURL := c.baseURL + endpoint
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(payload)
	} else if len(params) > 0 {
		reqURL += "?" + payload
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, &TransportError{Op: method + " " + endpoint, Err: err}
	}
	req.Header.Set("X-BAPI-API-KEY", c.signer.APIKey())
	req.Header.Set("X-BAPI-SIGN", signature)
	req.Header.Set("X-BAPI-SIGN-TYPE", SignType)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", RecvWindow)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("bybit request",
		zap.String("method", method),
		zap.String("url", reqURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method + " " + endpoint, Err: err}
	}

	c.logger.Debug("bybit response",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(raw)))

	result, err := decodeEnvelope(raw)
	if err != nil {
		c.logger.Warn("bybit request failed",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func decodeEnvelope(raw []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, ErrEmptyResponse
	}

	var envelope ServerResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &MalformedResponseError{Body: string(raw), Err: err}
	}

	if err := ParseAPIError(envelope.RetCode, envelope.RetMsg); err != nil {
		return nil, err
	}
	return envelope.Result, nil
}

func decodeResult(result json.RawMessage, v interface{}) error {
	if len(result) == 0 || string(result) == "null" {
		return nil
	}
	if err := json.Unmarshal(result, v); err != nil {
		return &MalformedResponseError{Body: string(result), Err: err}
	}
	return nil
}

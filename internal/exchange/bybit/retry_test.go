package bybit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() Option {
	return WithRetry(RetryConfig{
		MaxRetries:    2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	})
}

func TestRequest_RetriesRateLimitedReads(t *testing.T) {
	calls := 0
	fake := newFakeBybit(t, func(req recordedRequest) string {
		calls++
		if calls == 1 {
			return errEnvelope("10006", "Too many visits")
		}
		return okEnvelope(`{"list":[{"symbol":"BTCUSDT","lastPrice":"50000"}]}`)
	})
	client := NewClient(Config{Testnet: true}, WithBaseURL(fake.server.URL), fastRetry())

	ticker, err := client.GetTicker(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, ticker)
	assert.Equal(t, 50000.0, ticker.LastPriceValue())
	assert.Len(t, fake.Requests(), 2)
}

func TestRequest_GivesUpAfterMaxRetries(t *testing.T) {
	fake := newFakeBybit(t, func(req recordedRequest) string {
		return errEnvelope("10006", "Too many visits")
	})
	client := NewClient(Config{Testnet: true}, WithBaseURL(fake.server.URL), fastRetry())

	_, err := client.GetBalance(context.Background())
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
	assert.Len(t, fake.Requests(), 3)
}

func TestRequest_DoesNotRetryOrdersOrRejections(t *testing.T) {
	fake := newFakeBybit(t, func(req recordedRequest) string {
		if req.Method == http.MethodPost {
			return errEnvelope("10006", "Too many visits")
		}
		return errEnvelope("10001", "params error")
	})
	client := NewClient(Config{Testnet: true}, WithBaseURL(fake.server.URL), fastRetry())

	_, err := client.PlaceOrder(context.Background(), "BTCUSDT", OrderSideBuy, 0.01)
	require.Error(t, err)
	_, err = client.GetPositions(context.Background(), "BTCUSDT")
	require.Error(t, err)

	assert.Len(t, fake.Requests(), 2)
}

func TestRetryConfig_BackOffIsCapped(t *testing.T) {
	b := RetryConfig{
		MaxRetries:    5,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      300 * time.Millisecond,
		BackoffFactor: 2,
	}.backOff()

	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())
}

func TestRequest_CancelledRetryIsTransportFault(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := newFakeBybit(t, func(req recordedRequest) string {
		cancel()
		return errEnvelope("10006", "Too many visits")
	})
	client := NewClient(Config{Testnet: true}, WithBaseURL(fake.server.URL), WithRetry(RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      time.Second,
		BackoffFactor: 2,
	}))

	_, err := client.GetBalance(ctx)
	require.Error(t, err)
	assert.Len(t, fake.Requests(), 1)
}

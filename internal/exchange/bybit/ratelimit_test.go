package bybit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRateLimit_PacesRequests(t *testing.T) {
	fake := newFakeBybit(t, func(req recordedRequest) string {
		return okEnvelope(`{"list":[]}`)
	})
	client := NewClient(Config{Testnet: true}, WithBaseURL(fake.server.URL), WithRateLimit(1, 50))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.GetPositions(context.Background(), "BTCUSDT")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Len(t, fake.Requests(), 3)
}

func TestWithRateLimit_WaitHonoursContext(t *testing.T) {
	fake := newFakeBybit(t, func(req recordedRequest) string {
		return okEnvelope(`{"list":[]}`)
	})
	client := NewClient(Config{Testnet: true}, WithBaseURL(fake.server.URL), WithRateLimit(1, 0.001))

	_, err := client.GetPositions(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.GetPositions(ctx, "BTCUSDT")
	require.Error(t, err)
	var transport *TransportError
	assert.ErrorAs(t, err, &transport)
	assert.Len(t, fake.Requests(), 1)
}

func TestWithRateLimit_Settings(t *testing.T) {
	client := NewClient(Config{}, WithRateLimit(10, 5))
	require.NotNil(t, client.limiter)
	assert.Equal(t, 10, client.limiter.Burst())
	assert.InDelta(t, 5.0, float64(client.limiter.Limit()), 1e-9)
}

func TestWithRateLimit_Disabled(t *testing.T) {
	client := NewClient(Config{}, WithRateLimit(0, 10))
	assert.Nil(t, client.limiter)
}

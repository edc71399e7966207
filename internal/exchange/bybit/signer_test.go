package bybit

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey       = "test-key"
	testSecret    = "test-secret"
	testTimestamp = "1700000000000"
)

func TestSigner_SignGetQuery(t *testing.T) {
	signer := NewSigner(testKey, testSecret)

	sig, err := signer.SignRequest(testTimestamp, http.MethodGet, Params{
		{Key: "accountType", Value: "UNIFIED"},
	})
	require.NoError(t, err)
	assert.Equal(t, "3f10586267639c9f3f4f5e32e491a6ef80d157db06f51eb79e4988e24f97adba", sig)
}

func TestSigner_SignPostBody(t *testing.T) {
	signer := NewSigner(testKey, testSecret)

	params := Params{
		{Key: "category", Value: "linear"},
		{Key: "symbol", Value: "BTCUSDT"},
		{Key: "side", Value: "Buy"},
		{Key: "orderType", Value: "Market"},
		{Key: "qty", Value: "0.03"},
		{Key: "timeInForce", Value: "IOC"},
		{Key: "positionIdx", Value: 0},
		{Key: "reduceOnly", Value: false},
	}

	sig, err := signer.SignRequest(testTimestamp, http.MethodPost, params)
	require.NoError(t, err)
	assert.Equal(t, "6fcbe25a0a541df7c2bcc4e0c9d272ba2899e7d551478120626c76bfac904b60", sig)

	// A pre-serialized body is signed verbatim.
	body, err := json.Marshal(params)
	require.NoError(t, err)
	sigFromString, err := signer.SignRequest(testTimestamp, http.MethodPost, string(body))
	require.NoError(t, err)
	assert.Equal(t, sig, sigFromString)
}

func TestSigner_EmptyGetPayload(t *testing.T) {
	signer := NewSigner(testKey, testSecret)

	sig, err := signer.SignRequest(testTimestamp, http.MethodGet, Params{})
	require.NoError(t, err)
	assert.Equal(t, "d8d5e71d8f986368aa5c13405f059ab6adb4f41df59d2f11bb056226b63457d6", sig)
	assert.Equal(t, sig, signer.Sign(testTimestamp, ""))
}

func TestParams_KeepInsertionOrder(t *testing.T) {
	params := Params{
		{Key: "symbol", Value: "ETHUSDT"},
		{Key: "category", Value: "linear"},
	}
	params.Set("limit", 50)
	params.Set("symbol", "BTCUSDT")

	assert.Equal(t, "symbol=BTCUSDT&category=linear&limit=50", params.Encode())

	body, err := json.Marshal(params)
	require.NoError(t, err)
	assert.Equal(t, `{"symbol":"BTCUSDT","category":"linear","limit":50}`, string(body))

	v, ok := params.Get("limit")
	assert.True(t, ok)
	assert.Equal(t, 50, v)
}

func TestParams_EncodeEscapesValues(t *testing.T) {
	params := Params{
		{Key: "note", Value: "a b&c"},
		{Key: "price", Value: 0.5},
		{Key: "flag", Value: true},
	}
	assert.Equal(t, "note=a+b%26c&price=0.5&flag=true", params.Encode())
}

func TestCanonicalPayload_UnsupportedQueryType(t *testing.T) {
	_, err := CanonicalPayload(http.MethodGet, map[string]string{"a": "b"})
	assert.Error(t, err)
}

package bybit

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RecvWindow is the receive window (milliseconds) sent with every signed request.
const RecvWindow = "5000"

// SignType identifies HMAC-SHA256 signatures in the X-BAPI-SIGN-TYPE header.
const SignType = "2"

// Param is a single request parameter.
type Param struct {
	Key   string
	Value interface{}
}

// Params is an insertion-ordered parameter list. Bybit signs the exact bytes
// that go on the wire, so the order in which parameters are added is the
// order in which they are encoded.
type Params []Param

// Set replaces the value of an existing key in place, or appends a new one.
func (p *Params) Set(key string, value interface{}) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Param{Key: key, Value: value})
}

// Get returns the value stored under key.
func (p Params) Get(key string) (interface{}, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Encode renders the parameters as a form-urlencoded query string without sorting.
func (p Params) Encode() string {
	var b strings.Builder
	for i, kv := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(formatParam(kv.Value)))
	}
	return b.String()
}

// MarshalJSON renders the parameters as a JSON object in insertion order.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", kv.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func formatParam(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// CanonicalPayload returns the string Bybit expects to be signed for a request.
// POST requests sign the JSON body (a string body is used verbatim); GET
// requests sign the query string.
func CanonicalPayload(method string, params interface{}) (string, error) {
	if s, ok := params.(string); ok {
		return s, nil
	}

	if method == http.MethodPost {
		body, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("failed to serialize request body: %w", err)
		}
		return string(body), nil
	}

	switch p := params.(type) {
	case nil:
		return "", nil
	case Params:
		return p.Encode(), nil
	case url.Values:
		return p.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported query parameters type %T", params)
	}
}

// Signer produces Bybit v5 HMAC-SHA256 request signatures.
type Signer struct {
	apiKey    string
	apiSecret string
}

// NewSigner creates a signer for the given key pair.
func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{apiKey: apiKey, apiSecret: apiSecret}
}

// APIKey returns the public half of the key pair.
func (s *Signer) APIKey() string {
	return s.apiKey
}

// Sign signs timestamp + apiKey + recvWindow + payload and returns the hex digest.
func (s *Signer) Sign(timestamp, payload string) string {
	mac := hmac.New(sha256.New, []byte(s.apiSecret))
	mac.Write([]byte(timestamp + s.apiKey + RecvWindow + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest canonicalizes params for method and signs the result.
func (s *Signer) SignRequest(timestamp, method string, params interface{}) (string, error) {
	payload, err := CanonicalPayload(method, params)
	if err != nil {
		return "", err
	}
	return s.Sign(timestamp, payload), nil
}

package queue

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultAccount is the queue used when a signal names no account.
const DefaultAccount = "FTMO"

// Queue is a per-account FIFO of raw signals waiting for a trading terminal
// to poll them.
type Queue interface {
	// Enqueue stores payload with a signalId and receivedAt stamp and returns
	// the id and the resulting queue length.
	Enqueue(ctx context.Context, account string, payload map[string]interface{}) (signalID string, size int64, err error)
	// Dequeue pops the oldest signal, or returns nil when the queue is empty.
	Dequeue(ctx context.Context, account string) (json.RawMessage, error)
	// Len returns the number of waiting signals.
	Len(ctx context.Context, account string) (int64, error)
}

// NormalizeAccount upper-cases account and maps an empty name to DefaultAccount.
func NormalizeAccount(account string) string {
	account = strings.ToUpper(strings.TrimSpace(account))
	if account == "" {
		return DefaultAccount
	}
	return account
}

// Key returns the storage key of an account queue.
func Key(account string) string {
	return "q:" + NormalizeAccount(account)
}

var (
	idMu sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// NewSignalID returns a ULID, sortable by generation time.
func NewSignalID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now.UTC()), mono).String()
}

// stamp copies payload and adds the queue bookkeeping fields.
func stamp(payload map[string]interface{}, now time.Time) (string, []byte, error) {
	entry := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		entry[k] = v
	}
	signalID := NewSignalID(now)
	entry["signalId"] = signalID
	entry["receivedAt"] = now.UnixMilli()

	raw, err := json.Marshal(entry)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode signal: %w", err)
	}
	return signalID, raw, nil
}

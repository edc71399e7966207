package journal

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// Status values recorded for a processed signal
const (
	StatusExecuted = "executed"
	StatusClosed   = "closed"
	StatusHold     = "hold"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// DefaultCapacity bounds the in-memory journal.
const DefaultCapacity = 1000

// Entry is one processed signal
type Entry struct {
	Time           time.Time
	Account        string
	Symbol         string
	Action         string
	Status         string
	Side           string
	OrderID        string
	Quantity       float64
	Price          float64
	StopLoss       float64
	SignalStrength float64
	Notes          []string
}

// Journal keeps the most recent entries in memory, oldest first. Like the
// daily risk stats it does not survive a restart.
type Journal struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// New creates a journal holding at most capacity entries.
func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{capacity: capacity}
}

// Record appends e, dropping the oldest entry when full.
func (j *Journal) Record(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, e)
	if len(j.entries) > j.capacity {
		j.entries = j.entries[len(j.entries)-j.capacity:]
	}
}

// Entries returns a copy of the recorded entries.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Entry(nil), j.entries...)
}

const (
	signalsSheet = "Signals"
	summarySheet = "Summary"
)

// WriteXLSX writes the journal as a workbook with a Signals sheet and a
// per-status Summary sheet.
func (j *Journal) WriteXLSX(w io.Writer) error {
	entries := j.Entries()

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), signalsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	headStyle, err := fx.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	sw := &sheetWriter{fx: fx}
	headers := []string{"Time (UTC)", "Account", "Symbol", "Action", "Status", "Side", "Order ID",
		"Quantity", "Price", "Stop loss", "Signal strength", "Notes"}
	sw.header(signalsSheet, headers, headStyle)

	counts := make(map[string]int)
	for i, e := range entries {
		counts[e.Status]++
		values := []interface{}{
			e.Time.UTC().Format("2006-01-02 15:04:05"),
			e.Account,
			e.Symbol,
			e.Action,
			e.Status,
			e.Side,
			e.OrderID,
			e.Quantity,
			e.Price,
			e.StopLoss,
			e.SignalStrength,
			strings.Join(e.Notes, "; "),
		}
		for col, v := range values {
			sw.set(signalsSheet, col+1, i+2, v)
		}
	}

	sw.header(summarySheet, []string{"Status", "Signals"}, headStyle)
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for i, status := range statuses {
		sw.set(summarySheet, 1, i+2, status)
		sw.set(summarySheet, 2, i+2, counts[status])
	}
	total := len(statuses) + 2
	sw.set(summarySheet, 1, total, "total")
	sw.set(summarySheet, 2, total, len(entries))

	if sw.err != nil {
		return fmt.Errorf("failed to fill journal workbook: %w", sw.err)
	}
	return fx.Write(w)
}

// sheetWriter fills cells and keeps the first error, after which it stops writing.
type sheetWriter struct {
	fx  *excelize.File
	err error
}

func (sw *sheetWriter) set(sheet string, col, row int, value interface{}) {
	if sw.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		sw.err = err
		return
	}
	sw.err = sw.fx.SetCellValue(sheet, cell, value)
}

func (sw *sheetWriter) header(sheet string, headers []string, style int) {
	for i, h := range headers {
		sw.set(sheet, i+1, 1, h)
		if sw.err != nil {
			return
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		sw.err = sw.fx.SetCellStyle(sheet, cell, cell, style)
	}
}

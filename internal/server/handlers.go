package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/ducminhle1904/webhook-bridge/internal/errors"
	"github.com/ducminhle1904/webhook-bridge/internal/monitoring"
	"github.com/ducminhle1904/webhook-bridge/internal/queue"
	"github.com/ducminhle1904/webhook-bridge/internal/risk"
)

const (
	errInvalidJSON = "Invalid JSON"
	errBadToken    = "Bad token"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// enqueue stores a signal for an external terminal to poll.
func (s *Server) enqueue(c *gin.Context) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()

	var body map[string]interface{}
	if err := dec.Decode(&body); err != nil || body == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": errInvalidJSON})
		return
	}

	if !s.tokenValid(body["token"]) {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": errBadToken})
		return
	}

	account, _ := body["account"].(string)
	account = queue.NormalizeAccount(account)

	signalID, size, err := s.queue.Enqueue(c.Request.Context(), account, body)
	if err != nil {
		s.logger.Error("failed to enqueue signal", zap.String("account", account), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	monitoring.UpdateQueueDepth(account, size)

	s.logger.Info("signal enqueued",
		zap.String("account", account),
		zap.String("signal_id", signalID),
		zap.Int64("size", size))
	c.JSON(http.StatusOK, gin.H{"ok": true, "size": size, "signalId": signalID})
}

// dequeue pops the oldest signal of an account. Store faults read as an
// empty queue so pollers keep polling.
func (s *Server) dequeue(c *gin.Context) {
	account := queue.NormalizeAccount(c.Query("account"))
	ctx := c.Request.Context()

	raw, err := s.queue.Dequeue(ctx, account)
	if err != nil {
		s.logger.Warn("failed to dequeue signal", zap.String("account", account), zap.Error(err))
		raw = nil
	}
	if n, err := s.queue.Len(ctx, account); err == nil {
		monitoring.UpdateQueueDepth(account, n)
	}

	if raw == nil {
		c.Data(http.StatusOK, "application/json", []byte("null"))
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// bybit validates a signal and trades it on Bybit.
func (s *Server) bybit(c *gin.Context) {
	var signal risk.Signal
	if err := json.NewDecoder(c.Request.Body).Decode(&signal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": errInvalidJSON})
		return
	}

	if s.cfg.RequireTokenForBybit && !s.tokenValid(signal.Token) {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": errBadToken})
		return
	}

	if err := signal.Validate(); err != nil {
		verr := apperrors.NewValidationError("server", "bybit", err)
		c.JSON(verr.StatusCode(), gin.H{
			"ok":        false,
			"error":     "Invalid signal: " + err.Error(),
			"timestamp": s.timestamp(),
		})
		return
	}

	// An order that went out must get its stop even if the caller hangs up.
	ctx := context.WithoutCancel(c.Request.Context())
	outcome, err := s.processor.Process(ctx, signal.Account, signal)
	if err != nil {
		status := http.StatusInternalServerError
		var bridgeErr *apperrors.BridgeError
		if errors.As(err, &bridgeErr) {
			status = bridgeErr.StatusCode()
		}
		c.JSON(status, gin.H{
			"ok":        false,
			"error":     err.Error(),
			"timestamp": s.timestamp(),
		})
		return
	}

	if outcome.Rejected {
		c.JSON(http.StatusBadRequest, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// status reports exchange connectivity.
func (s *Server) status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy := s.exchange.Ping(ctx)
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"bybit":     healthy,
		"timestamp": s.timestamp(),
		"testnet":   s.cfg.Testnet,
	})
}

// exportJournal downloads the processed-signal journal as a workbook.
func (s *Server) exportJournal(c *gin.Context) {
	if s.journal == nil {
		c.String(http.StatusNotFound, "Not found")
		return
	}

	var buf bytes.Buffer
	if err := s.journal.WriteXLSX(&buf); err != nil {
		s.logger.Error("failed to export journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="journal.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *Server) tokenValid(token interface{}) bool {
	if s.cfg.WebhookSecret == "" {
		return true
	}
	value, ok := token.(string)
	return ok && value == s.cfg.WebhookSecret
}

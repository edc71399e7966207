package bybit

import (
	"errors"
	"fmt"
	"strings"
)

// RejectReason is a machine-readable classification of an exchange rejection.
type RejectReason string

const (
	RejectReasonUnknown             RejectReason = ""
	RejectReasonPositionIdxMismatch RejectReason = "position_idx_mismatch"
	RejectReasonAuthentication      RejectReason = "authentication"
	RejectReasonRateLimited         RejectReason = "rate_limited"
	RejectReasonInsufficientBalance RejectReason = "insufficient_balance"
	RejectReasonOrderNotFound       RejectReason = "order_not_found"
)

// BybitError represents a non-zero retCode in a well-formed Bybit response envelope
type BybitError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Reason  RejectReason `json:"reason,omitempty"`
	Details string       `json:"details,omitempty"`
}

func (e *BybitError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Bybit API Error: %s (Code: %d, %s)", e.Message, e.Code, e.Details)
	}
	return fmt.Sprintf("Bybit API Error: %s (Code: %d)", e.Message, e.Code)
}

// Common Bybit error codes
const (
	ErrCodeParams              = 10001
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInsufficientBalance = 110007
)

var (
	// ErrEmptyResponse is returned when Bybit answers with an empty body.
	ErrEmptyResponse = errors.New("empty response from Bybit API")

	// ErrNoOpenPosition is returned by ClosePosition when there is nothing to close.
	ErrNoOpenPosition = errors.New("no open position found")
)

// MalformedResponseError is returned when the response body is not JSON.
type MalformedResponseError struct {
	Body string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("invalid JSON response from Bybit: %s", e.Body)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// TransportError wraps network level failures (DNS, connection refused, resets).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bybit transport failure on %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewBybitError creates a new BybitError and classifies its rejection reason
func NewBybitError(code int, message string, details ...string) *BybitError {
	err := &BybitError{
		Code:    code,
		Message: message,
		Reason:  classifyRejection(code, message),
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// ParseAPIError extracts error information from the API response
func ParseAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}

	return NewBybitError(retCode, retMsg)
}

// classifyRejection is the only place that inspects retMsg text. Bybit reports
// position mode mismatches under the generic parameter error code, so the
// message is the only discriminator available for that case.
func classifyRejection(code int, message string) RejectReason {
	switch code {
	case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature, ErrCodeInvalidTimestamp:
		return RejectReasonAuthentication
	case ErrCodeRateLimitExceeded:
		return RejectReasonRateLimited
	case ErrCodeInsufficientBalance:
		return RejectReasonInsufficientBalance
	case ErrCodeOrderNotFound:
		return RejectReasonOrderNotFound
	}

	if strings.Contains(strings.ToLower(message), "position idx not match") {
		return RejectReasonPositionIdxMismatch
	}
	return RejectReasonUnknown
}

// RejectionReason returns the classified reason of a Bybit rejection, or
// RejectReasonUnknown when err is not a BybitError.
func RejectionReason(err error) RejectReason {
	var bybitErr *BybitError
	if errors.As(err, &bybitErr) {
		return bybitErr.Reason
	}
	return RejectReasonUnknown
}

// IsAuthenticationError checks if the error is related to authentication
func IsAuthenticationError(err error) bool {
	return RejectionReason(err) == RejectReasonAuthentication
}

// IsRateLimitError checks if the error is due to rate limiting
func IsRateLimitError(err error) bool {
	return RejectionReason(err) == RejectReasonRateLimited
}

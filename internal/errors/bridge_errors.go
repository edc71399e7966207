package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/ducminhle1904/webhook-bridge/internal/exchange/bybit"
	"github.com/ducminhle1904/webhook-bridge/internal/risk"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Errors caused by the caller or by configuration
	ErrorCategoryValidation    ErrorCategory = "VALIDATION"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryCredentials   ErrorCategory = "CREDENTIALS"

	// Errors reported by or on the way to the exchange
	ErrorCategoryExchange   ErrorCategory = "EXCHANGE"
	ErrorCategoryNetwork    ErrorCategory = "NETWORK"
	ErrorCategoryTimeout    ErrorCategory = "TIMEOUT"
	ErrorCategoryRateLimit  ErrorCategory = "RATE_LIMIT"
	ErrorCategoryMarketData ErrorCategory = "MARKET_DATA"
	ErrorCategoryPosition   ErrorCategory = "POSITION"
	ErrorCategoryOrder      ErrorCategory = "ORDER"

	ErrorCategoryInternal ErrorCategory = "INTERNAL"
)

// BridgeError represents a categorized error with context
type BridgeError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Underlying error
}

// Error implements the error interface. The underlying message is kept
// verbatim so API responses read like the exchange's own errors.
func (e *BridgeError) Error() string {
	if e.Underlying == nil {
		return fmt.Sprintf("[%s:%s] %s failed", e.Category, e.Component, e.Operation)
	}
	return e.Underlying.Error()
}

// Unwrap returns the underlying error for error unwrapping
func (e *BridgeError) Unwrap() error {
	return e.Underlying
}

// StatusCode maps the category to the HTTP status returned for it.
func (e *BridgeError) StatusCode() int {
	switch e.Category {
	case ErrorCategoryValidation:
		return http.StatusBadRequest
	case ErrorCategoryMarketData, ErrorCategoryNetwork, ErrorCategoryTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WrapError wraps an existing error with bridge error context
func WrapError(err error, category ErrorCategory, component, operation string) *BridgeError {
	if err == nil {
		return nil
	}
	return &BridgeError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Underlying: err,
	}
}

// CategorizeError classifies err by its type. Errors that already carry a
// category are returned as is.
func CategorizeError(err error, component, operation string) *BridgeError {
	if err == nil {
		return nil
	}

	var bridgeErr *BridgeError
	if stderrors.As(err, &bridgeErr) {
		return bridgeErr
	}

	var (
		transportErr *bybit.TransportError
		malformedErr *bybit.MalformedResponseError
		apiErr       *bybit.BybitError
	)
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	case stderrors.As(err, &transportErr):
		return WrapError(err, ErrorCategoryNetwork, component, operation)
	case stderrors.Is(err, bybit.ErrEmptyResponse), stderrors.As(err, &malformedErr):
		return WrapError(err, ErrorCategoryExchange, component, operation)
	case stderrors.Is(err, bybit.ErrNoOpenPosition):
		return WrapError(err, ErrorCategoryPosition, component, operation)
	case stderrors.Is(err, risk.ErrInvalidStopLoss):
		return WrapError(err, ErrorCategoryValidation, component, operation)
	case stderrors.As(err, &apiErr):
		return WrapError(err, categoryForRejection(apiErr.Reason), component, operation)
	}

	return WrapError(err, ErrorCategoryInternal, component, operation)
}

func categoryForRejection(reason bybit.RejectReason) ErrorCategory {
	switch reason {
	case bybit.RejectReasonAuthentication:
		return ErrorCategoryCredentials
	case bybit.RejectReasonRateLimited:
		return ErrorCategoryRateLimit
	case bybit.RejectReasonInsufficientBalance, bybit.RejectReasonPositionIdxMismatch:
		return ErrorCategoryOrder
	case bybit.RejectReasonOrderNotFound:
		return ErrorCategoryPosition
	default:
		return ErrorCategoryExchange
	}
}

// CategoryOf returns the category of err, or ErrorCategoryInternal.
func CategoryOf(err error) ErrorCategory {
	if e := CategorizeError(err, "", ""); e != nil {
		return e.Category
	}
	return ErrorCategoryInternal
}

// Common error constructors
func NewValidationError(component, operation string, err error) *BridgeError {
	return WrapError(err, ErrorCategoryValidation, component, operation)
}

func NewConfigurationError(component, operation string, err error) *BridgeError {
	return WrapError(err, ErrorCategoryConfiguration, component, operation)
}

func NewMarketDataError(component, operation string, err error) *BridgeError {
	return WrapError(err, ErrorCategoryMarketData, component, operation)
}

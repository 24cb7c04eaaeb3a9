package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Error codes. The code determines how callers react: configuration and
// validation errors are never retried and never counted against acquirer
// health; transient upstream errors are.
const (
	CodeConfigMissing       = "CONFIG_MISSING"
	CodeAmountTooLow        = "AMOUNT_TOO_LOW"
	CodeValidation          = "VALIDATION_ERROR"
	CodeDuplicate           = "DUPLICATE_TRANSACTION"
	CodeNotFound            = "NOT_FOUND"
	CodeAcquirerUnavailable = "ACQUIRER_UNAVAILABLE"
	CodeUpstream            = "UPSTREAM_ERROR"
	CodeCapabilityMissing   = "CAPABILITY_MISSING"
	CodeWebhookBlocked      = "WEBHOOK_BLOCKED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	CodeInternal            = "INTERNAL_ERROR"
)

// ---- Configuration (CONFIG) ----

// ErrConfigMissing signals an incomplete credential bundle or missing setting.
// Distinct from upstream errors so routing never mistakes a misconfiguration
// for a health problem.
func ErrConfigMissing(acquirer, field string) *AppError {
	return New(CodeConfigMissing,
		fmt.Sprintf("acquirer %s is not configured: missing %s", acquirer, field),
		http.StatusUnprocessableEntity)
}

// ---- Charge validation (PAY) ----

func ErrAmountTooLow(acquirer string, minimum int64) *AppError {
	return New(CodeAmountTooLow,
		fmt.Sprintf("amount below the %d centavo minimum for acquirer %s", minimum, acquirer),
		http.StatusBadRequest)
}

func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrDuplicate(externalID string) *AppError {
	return New(CodeDuplicate,
		fmt.Sprintf("transaction %s already exists", externalID),
		http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Routing (ROUTE) ----

func ErrAcquirerUnavailable(acquirer string) *AppError {
	return New(CodeAcquirerUnavailable,
		fmt.Sprintf("acquirer %s is currently unhealthy", acquirer),
		http.StatusServiceUnavailable)
}

// ---- Upstream (UPSTREAM) ----

// ErrUpstream wraps a transient acquirer failure (timeout, 5xx, connection
// reset). Always carries the acquirer name so multi-acquirer logs stay
// unambiguous.
func ErrUpstream(acquirer string, err error) *AppError {
	return Wrap(CodeUpstream,
		fmt.Sprintf("acquirer %s request failed", acquirer),
		http.StatusBadGateway, err)
}

// ---- Reconciliation (RECON) ----

func ErrCapabilityMissing(acquirer, capability string) *AppError {
	return New(CodeCapabilityMissing,
		fmt.Sprintf("acquirer %s does not support %s", acquirer, capability),
		http.StatusUnprocessableEntity)
}

// ---- Webhooks (HOOK) ----

func ErrWebhookBlocked(acquirer string) *AppError {
	return New(CodeWebhookBlocked,
		fmt.Sprintf("webhook origin validation failed for acquirer %s", acquirer),
		http.StatusForbidden)
}

// ---- Admin auth (AUTH) ----

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a INTERNAL_ERROR error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// ---- Classification predicates ----

func codeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return codeOf(err) == CodeConfigMissing }

// IsAmountBelowMinimum reports whether err is the adapter minimum-amount rejection.
func IsAmountBelowMinimum(err error) bool { return codeOf(err) == CodeAmountTooLow }

// IsNotFound reports whether the acquirer has no record of the transaction.
func IsNotFound(err error) bool { return codeOf(err) == CodeNotFound }

// IsDuplicate reports whether err is a uniqueness violation, treated as
// success-equivalent by reconciliation.
func IsDuplicate(err error) bool { return codeOf(err) == CodeDuplicate }

// IsTransient reports whether err counts against acquirer health.
func IsTransient(err error) bool { return codeOf(err) == CodeUpstream }

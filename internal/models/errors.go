package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode classifies gateway and validation failures independent of the
// transport that produced them.
type ErrorCode string

const (
	// ErrValidation marks input rejected before reaching the gateway.
	ErrValidation ErrorCode = "validation"
	// ErrAccess marks a permission failure. Not retryable.
	ErrAccess ErrorCode = "access_denied"
	// ErrNotFound marks a missing chat or message. Not retryable.
	ErrNotFound ErrorCode = "not_found"
	// ErrTransient marks network failures, timeouts and unexpected gateway
	// errors. Eligible for bounded retry.
	ErrTransient ErrorCode = "transient"
	// ErrRateLimited marks a throughput rejection. Never auto-retried.
	ErrRateLimited ErrorCode = "rate_limited"
)

// ChatError is the error shape surfaced by the gateway and the session.
type ChatError struct {
	Code    ErrorCode
	Message string
	// RetryAfter is a wait-time hint for rate-limit errors, zero otherwise.
	RetryAfter time.Duration
}

func (e *ChatError) Error() string {
	if e.Code == ErrRateLimited && e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry after %s)", e.Code, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewChatError builds a ChatError with a formatted message.
func NewChatError(code ErrorCode, format string, args ...any) *ChatError {
	return &ChatError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the error code, defaulting to ErrTransient for plain
// errors (network failures and the like).
func CodeOf(err error) ErrorCode {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrTransient
}

// IsRetryable reports whether the error is eligible for the bounded retry
// path. Only transient errors qualify.
func IsRetryable(err error) bool {
	return err != nil && CodeOf(err) == ErrTransient
}

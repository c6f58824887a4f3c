package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a HeartbeatError, the wrapper keeps its code and category.
// Otherwise, it creates a new Internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var hbErr *Error
	if errors.As(err, &hbErr) {
		wrapped := &Error{
			code:      hbErr.code,
			category:  hbErr.category,
			message:   message,
			cause:     err,
			metadata:  hbErr.Metadata(),
			timestamp: hbErr.timestamp,
			storageID: hbErr.storageID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsHeartbeatError extracts a HeartbeatError from an error chain.
// Returns nil if none is found.
func AsHeartbeatError(err error) HeartbeatError {
	var hbErr *Error
	if errors.As(err, &hbErr) {
		return hbErr
	}
	return nil
}

// Is checks if the outermost HeartbeatError in the chain has the given code.
func Is(err error, code ErrorCode) bool {
	var hbErr *Error
	if errors.As(err, &hbErr) {
		return hbErr.code == code
	}
	return false
}

// IsCategory checks if the outermost HeartbeatError in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var hbErr *Error
	if errors.As(err, &hbErr) {
		return hbErr.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	var hbErr *Error
	if errors.As(err, &hbErr) {
		return hbErr.Retryable()
	}
	return false
}

// Code extracts the error code from an error, if available.
// Returns empty string if err is not a HeartbeatError.
func Code(err error) ErrorCode {
	var hbErr *Error
	if errors.As(err, &hbErr) {
		return hbErr.code
	}
	return ""
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered interface{}, opts ...Option) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodePanic, message, append([]Option{WithMetadata("panic_value", fmt.Sprintf("%T", recovered))}, opts...)...)
}

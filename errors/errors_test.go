package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// ============================================================================
// 1. Error creation with different codes/categories
// ============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         ErrorCode
		message      string
		wantCategory ErrorCategory
	}{
		{"storage_write", ErrCodeStorageWrite, "write failed", CategoryTransient},
		{"not_found", ErrCodeNotFound, "nothing stored", CategoryPermanent},
		{"closed", ErrCodeClosed, "storage closed", CategoryPermanent},
		{"corruption", ErrCodeCorruption, "bad bytes", CategoryInternal},
		{"encoding", ErrCodeEncoding, "cannot encode", CategoryInternal},
		{"unknown", ErrorCode("WHATEVER"), "odd", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", err.Code(), tt.code)
			}
			if err.Category() != tt.wantCategory {
				t.Errorf("Category() = %v, want %v", err.Category(), tt.wantCategory)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.message)
			}
			if err.Timestamp().IsZero() {
				t.Error("Timestamp() should not be zero")
			}
		})
	}
}

func TestFromCode(t *testing.T) {
	err := FromCode(ErrCodeCorruption, WithStorageID("app"))
	if err.Error() != "stored data is corrupted" {
		t.Errorf("Error() = %v, want default description", err.Error())
	}
	if err.StorageID() != "app" {
		t.Errorf("StorageID() = %v, want app", err.StorageID())
	}
}

func TestDescription_Unknown(t *testing.T) {
	if got := ErrorCode("NOPE").Description(); got != "unknown error" {
		t.Errorf("Description() = %v, want unknown error", got)
	}
}

// ============================================================================
// 2. Retryable vs non-retryable errors
// ============================================================================

func TestRetryable(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		wantRetry bool
	}{
		{ErrCodeStorageWrite, true},
		{ErrCodeUnavailable, true},
		{ErrCodeTimeout, true},
		{ErrCodeNotFound, false},
		{ErrCodeClosed, false},
		{ErrCodeCorruption, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "test")
			if err.Retryable() != tt.wantRetry {
				t.Errorf("Retryable() = %v, want %v", err.Retryable(), tt.wantRetry)
			}
			if IsRetryable(err) != tt.wantRetry {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(err), tt.wantRetry)
			}
		})
	}
}

func TestWithCategory_Overrides(t *testing.T) {
	err := New(ErrCodeNotFound, "x", WithCategory(CategoryTransient))
	if !err.Retryable() {
		t.Error("expected overridden category to be retryable")
	}
}

// ============================================================================
// 3. Wrapping and chain inspection
// ============================================================================

func TestWrap_PreservesCode(t *testing.T) {
	inner := StorageWrite("rename failed", WithStorageID("app"), WithMetadata("path", "/tmp/x"))
	outer := Wrap(inner, "persist bundle")

	if outer.Code() != ErrCodeStorageWrite {
		t.Errorf("Code() = %v, want STORAGE_WRITE", outer.Code())
	}
	if outer.StorageID() != "app" {
		t.Errorf("StorageID() = %v, want app", outer.StorageID())
	}
	if outer.Metadata()["path"] != "/tmp/x" {
		t.Error("expected metadata to survive wrapping")
	}
	if !errors.Is(outer, inner) {
		t.Error("expected wrapped error to match inner with errors.Is")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if WrapWithCode(nil, ErrCodeInternal, "x") != nil {
		t.Error("WrapWithCode(nil) should be nil")
	}
}

func TestWrap_StandardErrors(t *testing.T) {
	if got := Wrap(context.DeadlineExceeded, "kv get").Code(); got != ErrCodeTimeout {
		t.Errorf("deadline exceeded wrapped as %v, want TIMEOUT", got)
	}
	if got := Wrap(fmt.Errorf("boom"), "x").Code(); got != ErrCodeInternal {
		t.Errorf("plain error wrapped as %v, want INTERNAL", got)
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("read: %w", NotFound("heartbeats-app"))

	if !Is(err, ErrCodeNotFound) {
		t.Error("expected NOT_FOUND in chain")
	}
	if Is(err, ErrCodeCorruption) {
		t.Error("did not expect CORRUPTION")
	}
	if Is(fmt.Errorf("plain"), ErrCodeNotFound) {
		t.Error("plain errors carry no code")
	}
	if Code(err) != ErrCodeNotFound {
		t.Errorf("Code() = %v, want NOT_FOUND", Code(err))
	}
	if !IsCategory(err, CategoryPermanent) {
		t.Error("expected permanent category")
	}
	if AsHeartbeatError(err) == nil {
		t.Error("expected AsHeartbeatError to find the error")
	}
	if AsHeartbeatError(fmt.Errorf("plain")) != nil {
		t.Error("expected nil for plain errors")
	}
}

func TestRecoverPanic(t *testing.T) {
	if RecoverPanic(nil) != nil {
		t.Error("RecoverPanic(nil) should be nil")
	}

	err := RecoverPanic("bad transform")
	if err.Code() != ErrCodePanic {
		t.Errorf("Code() = %v, want PANIC", err.Code())
	}
	if err.Metadata()["panic_value"] != "string" {
		t.Errorf("panic_value = %v, want string", err.Metadata()["panic_value"])
	}
}

package errors

// ErrorCategory classifies errors by their nature.
type ErrorCategory string

const (
	// CategoryTransient indicates a failure that a later attempt may not hit.
	// Examples: a storage write that failed because the disk was busy.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates a failure that repeating will not fix.
	// Examples: nothing stored yet, invalid configuration, closed storage.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates corrupted state or a bug.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed later.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

const (
	// Transient errors
	ErrCodeStorageWrite ErrorCode = "STORAGE_WRITE" // Persisting bytes failed
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"   // Backing store temporarily unreachable
	ErrCodeTimeout      ErrorCode = "TIMEOUT"       // Backing store did not answer in time

	// Permanent errors
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"     // Nothing has been stored
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT" // Malformed configuration or argument
	ErrCodeClosed       ErrorCode = "CLOSED"        // Storage already released
	ErrCodeUnsupported  ErrorCode = "UNSUPPORTED"   // Unknown backend or option

	// Internal errors
	ErrCodeCorruption ErrorCode = "CORRUPTION" // Stored bytes could not be decoded
	ErrCodeEncoding   ErrorCode = "ENCODING"   // Value could not be encoded
	ErrCodeInternal   ErrorCode = "INTERNAL"   // Unexpected internal error
	ErrCodePanic      ErrorCode = "PANIC"      // Recovered from panic
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeStorageWrite, ErrCodeUnavailable, ErrCodeTimeout:
		return CategoryTransient
	case ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeClosed, ErrCodeUnsupported:
		return CategoryPermanent
	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeStorageWrite: "storage write failed",
	ErrCodeUnavailable:  "storage temporarily unavailable",
	ErrCodeTimeout:      "operation timed out",
	ErrCodeNotFound:     "nothing stored",
	ErrCodeInvalidInput: "invalid input provided",
	ErrCodeClosed:       "storage closed",
	ErrCodeUnsupported:  "operation not supported",
	ErrCodeCorruption:   "stored data is corrupted",
	ErrCodeEncoding:     "encoding failed",
	ErrCodeInternal:     "internal error",
	ErrCodePanic:        "recovered from panic",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

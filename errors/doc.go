// Package errors provides the structured error taxonomy used by heartbeatkit.
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Transient: the operation may succeed if attempted again later (a failed write)
//   - Permanent: attempting again will not help (absent resource, bad configuration, closed storage)
//   - Internal: corrupted or unencodable state
//
// Nothing in heartbeatkit retries on its own. Categories exist so that callers
// of the error-surfacing entry points (Storage.GetAndSet and friends) can decide
// what to do with a failure.
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.ErrCodeStorageWrite, "write heartbeats-app")
//
// Wrap an existing error with context:
//
//	wrapped := errors.WrapWithCode(err, errors.ErrCodeCorruption, "decode bundle")
//
// Check the code of an error anywhere in a chain:
//
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // nothing stored yet
//	}
package errors

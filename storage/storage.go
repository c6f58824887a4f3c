// Package storage provides byte-level persistence for heartbeat bundles.
//
// A Storage holds one opaque blob. Read fails with an error matching
// ErrNotFound when nothing has ever been written. Writing nil is never an
// "absent" failure: it leaves the resource readable as empty bytes.
//
// Two interchangeable backends are provided: FileStorage (one file per
// identifier, replaced atomically) and KeyValueStorage (one key in a
// state.Store, for platforms that restrict file quotas). Which backend a
// platform uses is decided by configuration through Factory.
package storage

import (
	hberrors "github.com/vinayprograms/heartbeatkit/errors"
)

// ErrNotFound is matched (via errors.Is) by Read errors for resources that
// were never written or were cleared.
var ErrNotFound = hberrors.NotFound("storage: nothing stored")

// Storage reads and writes one opaque blob.
type Storage interface {
	// Read returns the stored bytes. An empty slice is a valid result.
	Read() ([]byte, error)

	// Write fully replaces the stored bytes. A nil slice stores an empty
	// value rather than deleting the resource.
	Write(data []byte) error
}

// namePrefix prefixes every file name and key derived from an identifier.
const namePrefix = "heartbeats-"

// ResourceName returns the file name or key used for a heartbeat identifier.
func ResourceName(id string) string {
	return namePrefix + id
}

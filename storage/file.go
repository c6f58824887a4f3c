package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
)

// DirectoryName is the directory holding heartbeat files under the data home.
const DirectoryName = "google-heartbeat-storage"

// DefaultDirectory returns the platform data directory for heartbeat files.
func DefaultDirectory() string {
	return filepath.Join(xdg.DataHome, DirectoryName)
}

// FileConfig configures a FileStorage.
type FileConfig struct {
	// Fs is the filesystem to use.
	// Default: the OS filesystem
	Fs afero.Fs

	// Dir is the directory holding the file. Created on first write.
	// Default: DefaultDirectory()
	Dir string

	// Name is the file name (required, no path separators).
	Name string

	// LockTimeout bounds waiting for the cross-process write lock.
	// Only used on the OS filesystem.
	// Default: 5 seconds
	LockTimeout time.Duration
}

// FileStorage stores the blob in a single file.
type FileStorage struct {
	fs          afero.Fs
	dir         string
	path        string
	lockTimeout time.Duration
	useFlock    bool
}

// NewFileStorage creates a file-backed storage.
func NewFileStorage(cfg FileConfig) (*FileStorage, error) {
	if cfg.Name == "" || strings.ContainsAny(cfg.Name, `/\`) || cfg.Name == "." || cfg.Name == ".." {
		return nil, hberrors.InvalidInput(fmt.Sprintf("invalid storage file name %q", cfg.Name))
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Dir == "" {
		cfg.Dir = DefaultDirectory()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}

	_, isOS := cfg.Fs.(*afero.OsFs)
	return &FileStorage{
		fs:          cfg.Fs,
		dir:         cfg.Dir,
		path:        filepath.Join(cfg.Dir, cfg.Name),
		lockTimeout: cfg.LockTimeout,
		useFlock:    isOS,
	}, nil
}

// Path returns the file location.
func (s *FileStorage) Path() string {
	return s.path
}

// Read returns the file contents.
func (s *FileStorage) Read() ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, hberrors.Wrap(ErrNotFound, "read "+s.path)
	}
	if err != nil {
		return nil, hberrors.WrapWithCode(err, hberrors.ErrCodeUnavailable, "read "+s.path)
	}
	return data, nil
}

// Write replaces the file contents atomically: the bytes go to a temporary
// sibling which is then renamed over the target.
func (s *FileStorage) Write(data []byte) error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return hberrors.WrapWithCode(err, hberrors.ErrCodeStorageWrite, "mkdir "+s.dir)
	}

	if s.useFlock {
		lockPath := s.path + ".lock"
		lock := flock.New(lockPath)
		ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
		defer cancel()
		ok, err := lock.TryLockContext(ctx, 10*time.Millisecond)
		if !ok {
			return hberrors.New(hberrors.ErrCodeStorageWrite,
				fmt.Sprintf("could not acquire flock for %v", lockPath), hberrors.WithCause(err))
		}
		defer lock.Unlock()
	}

	tmp, err := afero.TempFile(s.fs, s.dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return hberrors.WrapWithCode(err, hberrors.ErrCodeStorageWrite, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return hberrors.WrapWithCode(err, hberrors.ErrCodeStorageWrite, "write "+tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return hberrors.WrapWithCode(err, hberrors.ErrCodeStorageWrite, "sync "+tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return hberrors.WrapWithCode(err, hberrors.ErrCodeStorageWrite, "close "+tmpName)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return hberrors.WrapWithCode(err, hberrors.ErrCodeStorageWrite, "rename to "+s.path)
	}
	return nil
}

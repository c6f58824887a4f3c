package storage

import (
	"fmt"
	"path/filepath"

	"github.com/nats-io/nats.go"
	"github.com/spf13/afero"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
	"github.com/vinayprograms/heartbeatkit/state"
)

// Backend names a storage backend.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
	BackendNATS   Backend = "nats"
	BackendSQLite Backend = "sqlite"
)

// FactoryConfig selects and configures the backend for every identifier.
type FactoryConfig struct {
	// Backend selects the storage kind.
	// Default: file
	Backend Backend

	// Directory holds heartbeat files (file backend) or the database
	// (sqlite backend, when SQLitePath is empty).
	// Default: DefaultDirectory()
	Directory string

	// Fs is the filesystem for the file backend.
	// Default: the OS filesystem
	Fs afero.Fs

	// Store overrides the key-value store for the memory, nats and sqlite
	// backends. The factory does not close an injected store.
	Store state.Store

	// NATSURL and NATSBucket configure the nats backend.
	NATSURL    string
	NATSBucket string

	// SQLitePath is the database file for the sqlite backend.
	// Default: <Directory>/heartbeats.db
	SQLitePath string
}

// Factory creates the Storage for a heartbeat identifier.
type Factory struct {
	cfg       FactoryConfig
	store     state.Store
	ownsStore bool
	conn      *nats.Conn
}

// NewFactory validates cfg and opens any key-value store the backend needs.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendFile
	}
	if cfg.Directory == "" {
		cfg.Directory = DefaultDirectory()
	}

	switch cfg.Backend {
	case BackendFile, BackendMemory, BackendNATS, BackendSQLite:
	default:
		return nil, hberrors.New(hberrors.ErrCodeUnsupported, fmt.Sprintf("unknown storage backend %q", cfg.Backend))
	}

	f := &Factory{cfg: cfg, store: cfg.Store}
	if cfg.Backend == BackendFile || f.store != nil {
		return f, nil
	}

	switch cfg.Backend {
	case BackendMemory:
		f.store = state.NewMemoryStore()

	case BackendNATS:
		url := cfg.NATSURL
		if url == "" {
			url = nats.DefaultURL
		}
		conn, err := nats.Connect(url, nats.Name("heartbeatkit"))
		if err != nil {
			return nil, hberrors.WrapWithCode(err, hberrors.ErrCodeUnavailable, "connect to nats")
		}
		natsCfg := state.DefaultNATSStoreConfig()
		natsCfg.Conn = conn
		if cfg.NATSBucket != "" {
			natsCfg.Bucket = cfg.NATSBucket
		}
		store, err := state.NewNATSStore(natsCfg)
		if err != nil {
			conn.Close()
			return nil, hberrors.WrapWithCode(err, hberrors.ErrCodeUnavailable, "open nats kv")
		}
		f.store = store
		f.conn = conn

	case BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Directory, "heartbeats.db")
		}
		store, err := state.NewSQLiteStore(state.SQLiteStoreConfig{Path: path})
		if err != nil {
			return nil, hberrors.WrapWithCode(err, hberrors.ErrCodeUnavailable, "open sqlite")
		}
		f.store = store
	}

	f.ownsStore = true
	return f, nil
}

// Backend returns the configured backend.
func (f *Factory) Backend() Backend {
	return f.cfg.Backend
}

// Make returns the Storage bound to id. Storages made for the same id
// share the same persisted bytes.
func (f *Factory) Make(id string) (Storage, error) {
	if id == "" {
		return nil, hberrors.InvalidInput("empty heartbeat identifier")
	}
	name := ResourceName(id)

	if f.cfg.Backend == BackendFile {
		return NewFileStorage(FileConfig{
			Fs:   f.cfg.Fs,
			Dir:  f.cfg.Directory,
			Name: name,
		})
	}
	return NewKeyValueStorage(f.store, name)
}

// Close releases the key-value store and connection the factory opened.
func (f *Factory) Close() error {
	var err error
	if f.ownsStore && f.store != nil {
		err = f.store.Close()
	}
	if f.conn != nil {
		f.conn.Close()
	}
	return err
}

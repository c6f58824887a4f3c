package heartbeat

import (
	"sync"

	"github.com/google/uuid"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
	"github.com/vinayprograms/heartbeatkit/guard"
	"github.com/vinayprograms/heartbeatkit/logging"
	"github.com/vinayprograms/heartbeatkit/storage"
	"github.com/vinayprograms/heartbeatkit/telemetry"
)

// StorageFactory returns the byte storage for an identifier. Calls for the
// same identifier must share persisted bytes.
type StorageFactory func(id string) (storage.Storage, error)

// Registry hands out one live Storage per identifier.
//
// The registry does not own its instances: each Acquire adds a reference,
// each Storage.Close drops one, and the entry disappears with the last
// reference. The next Acquire for that identifier builds a fresh Storage
// over the same persisted bytes, which starts only after the previous
// instance has drained its queue.
type Registry struct {
	factory StorageFactory
	logger  *logging.Logger
	tracer  *telemetry.Tracer

	table guard.Value[registryTable]
}

type registryTable struct {
	live map[string]*Storage
	// draining holds the done channel of the last released instance per
	// identifier until that identifier is acquired again.
	draining map[string]<-chan struct{}
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used by the registry's storages.
func WithLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer sets the tracer used around persistence.
func WithTracer(t *telemetry.Tracer) RegistryOption {
	return func(r *Registry) {
		if t != nil {
			r.tracer = t
		}
	}
}

// NewRegistry creates a registry whose storages persist through factory.
func NewRegistry(factory StorageFactory, opts ...RegistryOption) *Registry {
	r := &Registry{
		factory: factory,
		logger:  logging.New(),
		tracer:  telemetry.GetTracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("heartbeat")
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry backed by files in
// storage.DefaultDirectory().
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(func(id string) (storage.Storage, error) {
			return storage.NewFileStorage(storage.FileConfig{Name: storage.ResourceName(id)})
		})
	})
	return defaultRegistry
}

// Acquire returns the live Storage for id, creating it if needed. The
// caller owns one reference and must Close it.
func (r *Registry) Acquire(id string) (*Storage, error) {
	if id == "" {
		return nil, hberrors.InvalidInput("empty heartbeat identifier")
	}
	if r.factory == nil {
		return nil, hberrors.InvalidInput("registry has no storage factory")
	}

	var (
		s   *Storage
		err error
	)
	r.table.With(func(t *registryTable) {
		if t.live == nil {
			t.live = make(map[string]*Storage)
			t.draining = make(map[string]<-chan struct{})
		}
		if existing, ok := t.live[id]; ok {
			existing.refs++
			s = existing
			return
		}

		backend, ferr := r.factory(id)
		if ferr != nil {
			err = hberrors.Wrap(ferr, "create storage", hberrors.WithStorageID(id))
			return
		}
		s = newStorage(id, backend, r, t.draining[id])
		s.refs = 1
		t.live[id] = s
		delete(t.draining, id)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Len returns the number of live storages.
func (r *Registry) Len() int {
	n := 0
	r.table.With(func(t *registryTable) {
		n = len(t.live)
	})
	return n
}

func (r *Registry) release(s *Storage) {
	last := false
	r.table.With(func(t *registryTable) {
		if s.refs == 0 {
			return
		}
		s.refs--
		if s.refs > 0 {
			return
		}
		last = true
		if t.live[s.id] == s {
			delete(t.live, s.id)
		}
		t.draining[s.id] = s.done
	})
	if last {
		s.shutdown()
	}
}

func newInstanceID() string {
	return uuid.NewString()
}

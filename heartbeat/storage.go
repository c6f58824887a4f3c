package heartbeat

import (
	"context"
	"errors"
	"sync"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
	"github.com/vinayprograms/heartbeatkit/logging"
	"github.com/vinayprograms/heartbeatkit/storage"
	"github.com/vinayprograms/heartbeatkit/telemetry"
)

// ErrStorageClosed is returned by synchronous calls on a Storage whose last
// reference was released.
var ErrStorageClosed = hberrors.Closed("heartbeat storage closed")

// Transform maps the stored bundle to the bundle to store. A nil input
// means nothing usable was stored; a nil result stores an empty value.
type Transform func(*Bundle) *Bundle

// Storage serializes every read-modify-write of one identifier's bundle.
//
// Work runs on a single goroutine owned by the Storage, one task at a time
// in submission order, whether it was submitted by an async or a sync
// call. Obtain instances from a Registry and Close each one exactly once.
type Storage struct {
	id       string
	backend  storage.Storage
	registry *Registry
	logger   *logging.Logger
	tracer   *telemetry.Tracer

	// refs is guarded by the registry table lock.
	refs int

	mu      sync.Mutex
	queue   []func()
	closing bool
	notify  chan struct{}
	done    chan struct{}
}

func newStorage(id string, backend storage.Storage, r *Registry, after <-chan struct{}) *Storage {
	s := &Storage{
		id:       id,
		backend:  backend,
		registry: r,
		logger:   r.logger.WithTraceID(newInstanceID()),
		tracer:   r.tracer,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.run(after)
	return s
}

// ID returns the identifier the storage is bound to.
func (s *Storage) ID() string {
	return s.id
}

// run executes queued tasks until the storage is closed and the queue is
// drained. A previous instance for the same identifier, if any, finishes
// first.
func (s *Storage) run(after <-chan struct{}) {
	defer close(s.done)
	if after != nil {
		<-after
	}

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		closing := s.closing
		s.mu.Unlock()

		for _, task := range batch {
			task()
		}

		if len(batch) == 0 {
			if closing {
				return
			}
			<-s.notify
		}
	}
}

// submit queues task. It returns false once the storage is closed.
func (s *Storage) submit(task func()) bool {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	s.wake()
	return true
}

func (s *Storage) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// shutdown stops accepting work. Queued tasks still run.
func (s *Storage) shutdown() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.wake()
}

// Close releases one reference. When the last reference is released the
// storage leaves its registry, stops accepting work and exits once queued
// tasks have run. Close does not wait for that, so it is safe to call from
// a completion callback.
func (s *Storage) Close() error {
	s.registry.release(s)
	return nil
}

// Wait blocks until every task submitted before the call has run. On a
// closed storage it waits for the queue to drain. It must not be called
// from a transform or completion.
func (s *Storage) Wait() {
	done := make(chan struct{})
	if !s.submit(func() { close(done) }) {
		<-s.done
		return
	}
	<-done
}

// ReadAndWriteAsync queues transform and returns immediately. Load
// failures reach transform as nil; persistence failures are logged and
// dropped.
func (s *Storage) ReadAndWriteAsync(transform Transform) {
	ok := s.submit(func() {
		if _, err := s.readModifyWrite(transform, false); err != nil {
			s.logger.PersistFailed(s.id, err)
		}
	})
	if !ok {
		s.logger.Warn("heartbeat_storage_closed", map[string]interface{}{"id": s.id})
	}
}

// ReadAndWriteSync is ReadAndWriteAsync but waits for transform to run.
// Persistence failures are logged and dropped; the only error returned is
// ErrStorageClosed.
func (s *Storage) ReadAndWriteSync(transform Transform) error {
	done := make(chan struct{})
	ok := s.submit(func() {
		defer close(done)
		if _, err := s.readModifyWrite(transform, false); err != nil {
			s.logger.PersistFailed(s.id, err)
		}
	})
	if !ok {
		return ErrStorageClosed
	}
	<-done
	return nil
}

type getAndSetResult struct {
	old *Bundle
	err error
}

// GetAndSet applies transform and returns the bundle stored before it ran.
// Persistence failures are returned.
func (s *Storage) GetAndSet(transform Transform) (*Bundle, error) {
	result := make(chan getAndSetResult, 1)
	ok := s.submit(func() {
		old, err := s.readModifyWrite(transform, true)
		result <- getAndSetResult{old: old, err: err}
	})
	if !ok {
		return nil, ErrStorageClosed
	}
	r := <-result
	return r.old, r.err
}

// GetAndSetAsync is GetAndSet with the result delivered to completion on
// the storage goroutine. On a closed storage completion is called
// immediately with ErrStorageClosed. completion must not block on other
// work queued on the same storage.
func (s *Storage) GetAndSetAsync(transform Transform, completion func(*Bundle, error)) {
	if completion == nil {
		completion = func(*Bundle, error) {}
	}
	ok := s.submit(func() {
		old, err := s.readModifyWrite(transform, true)
		s.deliver(completion, old, err)
	})
	if !ok {
		completion(nil, ErrStorageClosed)
	}
}

func (s *Storage) deliver(completion func(*Bundle, error), old *Bundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("heartbeat_completion_panic", map[string]interface{}{
				"id":    s.id,
				"error": hberrors.RecoverPanic(r).Error(),
			})
		}
	}()
	completion(old, err)
}

// readModifyWrite loads the bundle, applies transform and persists the
// result. When keepOld is set transform receives a copy so the loaded
// bundle can be returned unchanged.
func (s *Storage) readModifyWrite(transform Transform, keepOld bool) (old *Bundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			old, err = nil, hberrors.RecoverPanic(r, hberrors.WithStorageID(s.id))
		}
	}()

	old = s.load()
	input := old
	if keepOld && old != nil {
		input = old.Clone()
	}

	if err := s.save(transform(input)); err != nil {
		return old, err
	}
	return old, nil
}

// load returns the stored bundle, or nil if nothing usable is stored.
func (s *Storage) load() *Bundle {
	_, span := s.tracer.StartStorageSpan(context.Background(), "load", s.id)

	data, err := s.backend.Read()
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.LoadFailed(s.id, err)
			s.tracer.EndStorageSpan(span, telemetry.StorageSpanOptions{Empty: true}, err)
			return nil
		}
		s.tracer.EndStorageSpan(span, telemetry.StorageSpanOptions{Empty: true}, nil)
		return nil
	}
	if len(data) == 0 {
		s.tracer.EndStorageSpan(span, telemetry.StorageSpanOptions{Empty: true}, nil)
		return nil
	}

	b, err := DecodeBundle(data)
	if err != nil {
		s.logger.LoadFailed(s.id, err)
		s.tracer.EndStorageSpan(span, telemetry.StorageSpanOptions{Bytes: len(data)}, err)
		return nil
	}
	s.tracer.EndStorageSpan(span, telemetry.StorageSpanOptions{Bytes: len(data)}, nil)
	return b
}

// save persists b, writing an empty value for nil.
func (s *Storage) save(b *Bundle) error {
	_, span := s.tracer.StartStorageSpan(context.Background(), "save", s.id)

	var data []byte
	if b != nil {
		encoded, err := EncodeBundle(b)
		if err != nil {
			s.tracer.EndStorageSpan(span, telemetry.StorageSpanOptions{}, err)
			return err
		}
		data = encoded
	}

	if err := s.backend.Write(data); err != nil {
		var wrapped error
		if hberrors.AsHeartbeatError(err) != nil {
			wrapped = hberrors.Wrap(err, "persist heartbeats", hberrors.WithStorageID(s.id))
		} else {
			wrapped = hberrors.WrapWithCode(err, hberrors.ErrCodeStorageWrite, "persist heartbeats", hberrors.WithStorageID(s.id))
		}
		s.tracer.EndStorageSpan(span, telemetry.StorageSpanOptions{Bytes: len(data), Empty: b == nil}, wrapped)
		return wrapped
	}

	s.tracer.EndStorageSpan(span, telemetry.StorageSpanOptions{Bytes: len(data), Empty: b == nil}, nil)
	return nil
}

package heartbeat

import (
	"errors"
	"sync"
	"testing"
	"time"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
	"github.com/vinayprograms/heartbeatkit/logging"
	"github.com/vinayprograms/heartbeatkit/state"
	"github.com/vinayprograms/heartbeatkit/storage"
	"github.com/vinayprograms/heartbeatkit/telemetry"
)

// flakyBackend fails writes while failWrites is set.
type flakyBackend struct {
	storage.Storage

	mu         sync.Mutex
	failWrites bool
}

func (f *flakyBackend) setFailWrites(v bool) {
	f.mu.Lock()
	f.failWrites = v
	f.mu.Unlock()
}

func (f *flakyBackend) Write(data []byte) error {
	f.mu.Lock()
	fail := f.failWrites
	f.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return f.Storage.Write(data)
}

func newFlakyRegistry(t *testing.T) (*Registry, *flakyBackend) {
	t.Helper()
	kv, err := storage.NewKeyValueStorage(state.NewMemoryStore(), "heartbeats-flaky")
	if err != nil {
		t.Fatal(err)
	}
	backend := &flakyBackend{Storage: kv}
	r := NewRegistry(func(string) (storage.Storage, error) {
		return backend, nil
	}, WithLogger(logging.Nop()), WithTracer(telemetry.NewTracer(nil)))
	return r, backend
}

func appendTransform(agent string, date time.Time) Transform {
	return func(b *Bundle) *Bundle {
		if b == nil {
			b = NewBundle(10)
		}
		b.Append(dailyHeartbeat(agent, date))
		return b
	}
}

func TestStorage_GetAndSetReturnsOld(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := acquire(t, r, "app")

	old, err := s.GetAndSet(appendTransform("a", day(1)))
	if err != nil || old != nil {
		t.Fatalf("expected nil old bundle on first call, got %v (%v)", old, err)
	}

	old, err = s.GetAndSet(appendTransform("b", day(2)))
	if err != nil {
		t.Fatalf("GetAndSet failed: %v", err)
	}
	if got := agentsOf(old.Heartbeats()); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected old bundle [a] untouched by transform, got %v", got)
	}

	current, _ := s.GetAndSet(func(b *Bundle) *Bundle { return b })
	if got := agentsOf(current.Heartbeats()); len(got) != 2 {
		t.Errorf("expected [a b] persisted, got %v", got)
	}
}

func TestStorage_NilResultStoresEmpty(t *testing.T) {
	r, store := newTestRegistry(t)
	s := acquire(t, r, "app")

	s.GetAndSet(appendTransform("a", day(1)))
	s.GetAndSet(func(*Bundle) *Bundle { return nil })

	data, err := store.Get(storage.ResourceName("app"))
	if err != nil {
		t.Fatalf("expected the key to remain readable, got %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty value, got %q", data)
	}

	old, err := s.GetAndSet(func(b *Bundle) *Bundle { return b })
	if err != nil || old != nil {
		t.Errorf("expected empty value to load as nil, got %v (%v)", old, err)
	}
}

func TestStorage_CorruptBytesLoadAsNil(t *testing.T) {
	r, store := newTestRegistry(t)
	store.Put(storage.ResourceName("app"), []byte("{not a bundle"))
	s := acquire(t, r, "app")

	var sawNil bool
	err := s.ReadAndWriteSync(func(b *Bundle) *Bundle {
		sawNil = b == nil
		return NewBundle(1)
	})
	if err != nil {
		t.Fatalf("ReadAndWriteSync failed: %v", err)
	}
	if !sawNil {
		t.Error("expected corrupt bytes to reach the transform as nil")
	}

	old, _ := s.GetAndSet(func(b *Bundle) *Bundle { return b })
	if old == nil || old.Capacity() != 1 {
		t.Errorf("expected the replacement bundle to be stored, got %v", old)
	}
}

func TestStorage_PersistenceErrors(t *testing.T) {
	r, backend := newFlakyRegistry(t)
	s := acquire(t, r, "app")

	s.GetAndSet(appendTransform("a", day(1)))
	backend.setFailWrites(true)

	_, err := s.GetAndSet(appendTransform("b", day(2)))
	if !hberrors.Is(err, hberrors.ErrCodeStorageWrite) {
		t.Errorf("expected STORAGE_WRITE from GetAndSet, got %v", err)
	}

	var asyncErr error
	done := make(chan struct{})
	s.GetAndSetAsync(appendTransform("c", day(3)), func(_ *Bundle, err error) {
		asyncErr = err
		close(done)
	})
	<-done
	if !hberrors.IsRetryable(asyncErr) {
		t.Errorf("expected a retryable error from GetAndSetAsync, got %v", asyncErr)
	}

	// Fire-and-forget variants swallow the failure.
	s.ReadAndWriteAsync(appendTransform("d", day(4)))
	if err := s.ReadAndWriteSync(appendTransform("e", day(5))); err != nil {
		t.Errorf("ReadAndWriteSync should swallow write errors, got %v", err)
	}

	backend.setFailWrites(false)
	old, err := s.GetAndSet(func(b *Bundle) *Bundle { return b })
	if err != nil {
		t.Fatalf("GetAndSet failed: %v", err)
	}
	if got := agentsOf(old.Heartbeats()); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected only the last successful state [a], got %v", got)
	}
}

func TestStorage_TransformPanic(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := acquire(t, r, "app")

	_, err := s.GetAndSet(func(*Bundle) *Bundle { panic("boom") })
	if !hberrors.Is(err, hberrors.ErrCodePanic) {
		t.Errorf("expected PANIC, got %v", err)
	}

	s.ReadAndWriteAsync(func(*Bundle) *Bundle { panic("boom") })
	s.GetAndSetAsync(appendTransform("a", day(1)), func(*Bundle, error) { panic("completion") })

	// The worker survives and keeps going.
	if _, err := s.GetAndSet(appendTransform("b", day(2))); err != nil {
		t.Errorf("expected storage to keep working, got %v", err)
	}
}

func TestStorage_StrictFIFO(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := acquire(t, r, "app")

	const n = 400
	var order []int // only touched on the storage goroutine
	record := func(i int) Transform {
		return func(b *Bundle) *Bundle {
			order = append(order, i)
			return b
		}
	}

	var completions []int
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		switch i % 4 {
		case 0:
			s.ReadAndWriteAsync(record(i))
		case 1:
			if err := s.ReadAndWriteSync(record(i)); err != nil {
				t.Fatalf("ReadAndWriteSync failed: %v", err)
			}
		case 2:
			wg.Add(1)
			i := i
			s.GetAndSetAsync(record(i), func(*Bundle, error) {
				completions = append(completions, i)
				wg.Done()
			})
		case 3:
			if _, err := s.GetAndSet(record(i)); err != nil {
				t.Fatalf("GetAndSet failed: %v", err)
			}
		}
	}
	wg.Wait()
	// A final sync call orders the reads below after every task.
	s.ReadAndWriteSync(func(b *Bundle) *Bundle { return b })

	if len(order) != n {
		t.Fatalf("expected %d transforms, got %d", n, len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("transform %d ran at position %d", v, i)
		}
	}
	for i := 1; i < len(completions); i++ {
		if completions[i] <= completions[i-1] {
			t.Fatalf("completions out of order: %v", completions)
		}
	}
}

func TestStorage_AsyncDoesNotBlock(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := acquire(t, r, "app")

	release := make(chan struct{})
	s.ReadAndWriteAsync(func(b *Bundle) *Bundle {
		<-release
		return b
	})

	submitted := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.ReadAndWriteAsync(func(b *Bundle) *Bundle { return b })
		}
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(5 * time.Second):
		t.Fatal("async submissions blocked behind a running task")
	}
	close(release)
}

func TestStorage_Wait(t *testing.T) {
	r, store := newTestRegistry(t)
	s := acquire(t, r, "app")

	for i := 0; i < 10; i++ {
		s.ReadAndWriteAsync(appendTransform("a", day(1)))
	}
	s.Wait()

	data, err := store.Get(storage.ResourceName("app"))
	if err != nil {
		t.Fatalf("expected the async writes to have landed, got %v", err)
	}
	b, err := DecodeBundle(data)
	if err != nil || b.Len() != 10 {
		t.Errorf("expected 10 heartbeats, got %v (%v)", b, err)
	}
}

func TestStorage_WaitAfterClose(t *testing.T) {
	r, _ := newTestRegistry(t)
	s, _ := r.Acquire("app")
	s.ReadAndWriteAsync(appendTransform("a", day(1)))
	s.Close()

	s.Wait()
	select {
	case <-s.done:
	default:
		t.Error("expected Wait on a closed storage to return after draining")
	}
}

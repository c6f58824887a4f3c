package heartbeat

import (
	"encoding/json"
	"fmt"
	"time"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
	"github.com/vinayprograms/heartbeatkit/ringbuffer"
)

// DefaultCapacity is the number of heartbeats a controller keeps between
// flushes.
const DefaultCapacity = 30

// Bundle holds the most recent heartbeats and the date each time period
// was last logged.
//
// The cache is updated on Append only. It keeps the date of the most
// recently appended heartbeat per period even after that heartbeat has
// been evicted or removed, so removal never re-opens a period.
//
// Bundle is not safe for concurrent use; Storage serializes access.
type Bundle struct {
	buffer    *ringbuffer.RingBuffer[Heartbeat]
	lastAdded map[TimePeriod]time.Time
}

// NewBundle creates an empty bundle holding at most capacity heartbeats.
func NewBundle(capacity int) *Bundle {
	return NewBundleWithCache(capacity, nil)
}

// NewBundleWithCache creates an empty bundle seeded with last-logged dates.
// Periods missing from cache default to DistantPast.
func NewBundleWithCache(capacity int, cache map[TimePeriod]time.Time) *Bundle {
	b := &Bundle{
		buffer:    ringbuffer.New[Heartbeat](capacity),
		lastAdded: make(map[TimePeriod]time.Time, len(cache)),
	}
	for p, d := range cache {
		b.lastAdded[p] = d
	}
	b.fillCache()
	return b
}

func (b *Bundle) fillCache() {
	for _, p := range AllTimePeriods() {
		if _, ok := b.lastAdded[p]; !ok {
			b.lastAdded[p] = DistantPast
		}
	}
}

// Capacity returns the maximum number of heartbeats held.
func (b *Bundle) Capacity() int {
	return b.buffer.Cap()
}

// Len returns the number of heartbeats held.
func (b *Bundle) Len() int {
	return b.buffer.Len()
}

// Append adds hb, evicting the oldest heartbeat when full, and records
// hb.Date as the last-logged date of each of its periods. It does nothing
// on a zero-capacity bundle.
func (b *Bundle) Append(hb Heartbeat) {
	if b.buffer.Cap() == 0 {
		return
	}
	b.buffer.Push(hb)
	for _, p := range hb.TimePeriods {
		b.lastAdded[p] = hb.Date
	}
}

// RemoveHeartbeat removes and returns the most recently appended heartbeat
// whose normalized date equals the normalized date. The remaining
// heartbeats keep their order. The last-logged cache is not changed.
func (b *Bundle) RemoveHeartbeat(date time.Time) (Heartbeat, bool) {
	target := NormalizeDate(date)

	var (
		skipped []Heartbeat
		found   Heartbeat
		ok      bool
	)
	for {
		hb, more := b.buffer.Pop()
		if !more {
			break
		}
		if NormalizeDate(hb.Date).Equal(target) {
			found, ok = hb, true
			break
		}
		skipped = append(skipped, hb)
	}

	// skipped is newest first.
	for i := len(skipped) - 1; i >= 0; i-- {
		b.buffer.Push(skipped[i])
	}
	return found, ok
}

// LastAddedDates returns a copy of the last-logged date per period.
func (b *Bundle) LastAddedDates() map[TimePeriod]time.Time {
	out := make(map[TimePeriod]time.Time, len(b.lastAdded))
	for p, d := range b.lastAdded {
		out[p] = d
	}
	return out
}

// Heartbeats returns the held heartbeats oldest first.
func (b *Bundle) Heartbeats() []Heartbeat {
	return b.buffer.Slice()
}

// MakePayload groups the held heartbeats by agent.
func (b *Bundle) MakePayload() Payload {
	return NewPayload(b.buffer.Slice()...)
}

// Clone returns a copy that shares no mutable state with b.
func (b *Bundle) Clone() *Bundle {
	return &Bundle{
		buffer:    b.buffer.Clone(),
		lastAdded: b.LastAddedDates(),
	}
}

// eligiblePeriods returns the periods for which a heartbeat dated date may
// be recorded: those whose last-logged date is at least one period ago.
func (b *Bundle) eligiblePeriods(date time.Time) []TimePeriod {
	var periods []TimePeriod
	for _, p := range AllTimePeriods() {
		if date.Sub(b.lastAdded[p]) >= p.Duration() {
			periods = append(periods, p)
		}
	}
	return periods
}

// wireBundle is the persisted form of a Bundle. It is unrelated to the
// Payload wire format.
type wireBundle struct {
	Capacity  int                               `json:"capacity"`
	Buffer    *ringbuffer.RingBuffer[Heartbeat] `json:"buffer"`
	LastAdded map[string]time.Time              `json:"lastAddedHeartbeatDates"`
}

// MarshalJSON implements json.Marshaler.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	w := wireBundle{
		Capacity:  b.buffer.Cap(),
		Buffer:    b.buffer,
		LastAdded: make(map[string]time.Time, len(b.lastAdded)),
	}
	for p, d := range b.lastAdded {
		w.LastAdded[p.String()] = d
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. Cache entries for periods this
// build does not know are dropped.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var w wireBundle
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Capacity < 0 {
		return fmt.Errorf("negative bundle capacity %d", w.Capacity)
	}
	if w.Buffer == nil {
		w.Buffer = ringbuffer.New[Heartbeat](w.Capacity)
	}
	if w.Buffer.Cap() != w.Capacity {
		return fmt.Errorf("bundle capacity %d does not match buffer capacity %d", w.Capacity, w.Buffer.Cap())
	}

	b.buffer = w.Buffer
	b.lastAdded = make(map[TimePeriod]time.Time, len(w.LastAdded))
	for name, d := range w.LastAdded {
		if p, ok := parseTimePeriod(name); ok {
			b.lastAdded[p] = d
		}
	}
	b.fillCache()
	return nil
}

// EncodeBundle returns the persisted bytes for b.
func EncodeBundle(b *Bundle) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, hberrors.WrapWithCode(err, hberrors.ErrCodeEncoding, "encode bundle")
	}
	return data, nil
}

// DecodeBundle parses bytes written by EncodeBundle.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, hberrors.Corruption("decode bundle", hberrors.WithCause(err))
	}
	return &b, nil
}

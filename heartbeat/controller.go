package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
	"github.com/vinayprograms/heartbeatkit/logging"
	"github.com/vinayprograms/heartbeatkit/telemetry"
)

// ControllerConfig configures a heartbeat controller.
type ControllerConfig struct {
	// ID selects the persisted bundle. Controllers with the same ID share it.
	ID string

	// Registry provides the storage for ID.
	// Default: DefaultRegistry()
	Registry *Registry

	// Clock supplies the current time.
	// Default: the wall clock
	Clock quartz.Clock

	// Capacity is the number of heartbeats kept between flushes.
	// Default: 30
	Capacity int

	// Logger receives heartbeat events.
	// Default: the registry's logger
	Logger *logging.Logger

	// Tracer wraps flushes in spans.
	// Default: telemetry.GetTracer()
	Tracer *telemetry.Tracer
}

// Validate checks the configuration.
func (c *ControllerConfig) Validate() error {
	if c.ID == "" {
		return hberrors.InvalidInput("controller requires an ID")
	}
	if c.Capacity < 0 {
		return hberrors.Newf(hberrors.ErrCodeInvalidInput, "negative capacity %d", c.Capacity)
	}
	return nil
}

// DefaultControllerConfig returns configuration with sensible defaults.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Clock:    quartz.NewReal(),
		Capacity: DefaultCapacity,
	}
}

// Controller logs and flushes heartbeats for one identifier.
type Controller struct {
	id       string
	storage  *Storage
	clock    quartz.Clock
	capacity int
	logger   *logging.Logger
	tracer   *telemetry.Tracer

	closeOnce sync.Once
}

// NewController creates a controller holding a reference to the storage
// for cfg.ID.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	defaults := DefaultControllerConfig()
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry()
	}
	if cfg.Clock == nil {
		cfg.Clock = defaults.Clock
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = defaults.Capacity
	}
	if cfg.Logger == nil {
		cfg.Logger = cfg.Registry.logger
	}
	if cfg.Tracer == nil {
		cfg.Tracer = cfg.Registry.tracer
	}

	s, err := cfg.Registry.Acquire(cfg.ID)
	if err != nil {
		return nil, err
	}

	return &Controller{
		id:       cfg.ID,
		storage:  s,
		clock:    cfg.Clock,
		capacity: cfg.Capacity,
		logger:   cfg.Logger.WithComponent("heartbeat"),
		tracer:   cfg.Tracer,
	}, nil
}

// ID returns the controller's identifier.
func (c *Controller) ID() string {
	return c.id
}

// today returns the current UTC calendar day.
func (c *Controller) today() time.Time {
	return NormalizeDate(c.clock.Now())
}

// Log records a heartbeat for agent unless every time period was already
// logged for today, by any agent. It returns without waiting for storage.
func (c *Controller) Log(agent string) {
	date := c.today()
	capacity := c.capacity

	c.storage.ReadAndWriteAsync(func(b *Bundle) *Bundle {
		if b == nil {
			b = NewBundle(capacity)
		}

		periods := b.eligiblePeriods(date)
		if len(periods) == 0 {
			c.logger.HeartbeatSkipped(agent, date)
			return b
		}

		b.Append(Heartbeat{
			Agent:       agent,
			Date:        date,
			TimePeriods: periods,
			Version:     SchemaVersion,
		})

		names := make([]string, 0, len(periods))
		for _, p := range periods {
			names = append(names, p.String())
		}
		c.logger.HeartbeatLogged(agent, date, names)
		return b
	})
}

// resetTransform replaces the stored bundle with an empty one that keeps
// the last-logged cache.
func (c *Controller) resetTransform() Transform {
	capacity := c.capacity
	return func(b *Bundle) *Bundle {
		if b == nil {
			return nil
		}
		return NewBundleWithCache(capacity, b.LastAddedDates())
	}
}

// Flush removes every stored heartbeat and returns them as a payload. The
// last-logged cache survives, so today cannot be logged again. An empty
// store, or a failure to persist the reset, yields EmptyPayload.
func (c *Controller) Flush() Payload {
	_, span := c.tracer.StartFlushSpan(context.Background(), "all", c.id)
	old, err := c.storage.GetAndSet(c.resetTransform())
	payload := c.flushedPayload(old, err)
	c.tracer.EndFlushSpan(span, len(payload.UserAgentPayloads), err)
	return payload
}

// FlushAsync is Flush with the payload delivered to completion. Ordering
// with other work on the same identifier is preserved.
func (c *Controller) FlushAsync(completion func(Payload)) {
	_, span := c.tracer.StartFlushSpan(context.Background(), "async", c.id)
	c.storage.GetAndSetAsync(c.resetTransform(), func(old *Bundle, err error) {
		payload := c.flushedPayload(old, err)
		c.tracer.EndFlushSpan(span, len(payload.UserAgentPayloads), err)
		if completion != nil {
			completion(payload)
		}
	})
}

func (c *Controller) flushedPayload(old *Bundle, err error) Payload {
	if err != nil {
		c.logger.PersistFailed(c.id, err)
		return EmptyPayload()
	}
	if old == nil {
		c.logger.Flushed("all", 0)
		return EmptyPayload()
	}
	payload := old.MakePayload()
	c.logger.Flushed("all", len(payload.UserAgentPayloads))
	return payload
}

// FlushHeartbeatFromToday removes only today's heartbeat and returns it as
// a payload, or EmptyPayload if none was stored. Other heartbeats and the
// last-logged cache are left alone.
func (c *Controller) FlushHeartbeatFromToday() Payload {
	date := c.today()
	_, span := c.tracer.StartFlushSpan(context.Background(), "today", c.id)

	var (
		removed Heartbeat
		found   bool
	)
	err := c.storage.ReadAndWriteSync(func(b *Bundle) *Bundle {
		if b == nil {
			return nil
		}
		removed, found = b.RemoveHeartbeat(date)
		return b
	})

	payload := EmptyPayload()
	if err == nil && found {
		payload = NewPayload(removed)
	}
	c.logger.Flushed("today", len(payload.UserAgentPayloads))
	c.tracer.EndFlushSpan(span, len(payload.UserAgentPayloads), err)
	return payload
}

// Wait blocks until every Log and FlushAsync issued so far has been
// persisted. Short-lived processes call it before exiting.
func (c *Controller) Wait() {
	c.storage.Wait()
}

// Close releases the controller's storage reference. Work already queued
// still runs. Calls after Close on a controller whose storage has no other
// owner are dropped or return empty payloads.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.storage.Close()
	})
	return err
}

// Package alert delivers threshold violations to registered observers with
// rate limiting and optional batching. Suppression only skips callback
// firing; the underlying violation records are kept by the session that
// produced them.
package alert

import (
	"sync"
	"time"

	"codeberg.org/mutker/perfmond/internal/logger"
	"codeberg.org/mutker/perfmond/internal/threshold"
)

// Event is one dispatched alert, carrying every violation coalesced into it.
type Event struct {
	SessionID  string
	Violations []threshold.Violation
	FirstAt    time.Time
	DispatchAt time.Time
}

// Callback receives dispatched alert events. Callbacks run synchronously on
// the dispatch path with no dispatcher lock held, so they may call back into
// the dispatcher or the monitor; a panicking callback is isolated and logged.
type Callback func(Event)

// Config controls dispatch behavior.
type Config struct {
	// MaxAlertsPerMinute caps callback dispatches in a sliding one-minute
	// window. Zero disables the limit.
	MaxAlertsPerMinute int
	// Batching coalesces violations arriving within EscalationDelay into a
	// single event.
	Batching        bool
	EscalationDelay time.Duration
}

type pendingBatch struct {
	sessionID  string
	violations []threshold.Violation
	firstAt    time.Time
	timer      *time.Timer
}

// Dispatcher fans violations out to registered callbacks.
type Dispatcher struct {
	mu         sync.Mutex
	cfg        Config
	callbacks  map[int]Callback
	nextID     int
	dispatches []time.Time
	suppressed uint64
	pending    map[string]*pendingBatch
	closed     bool
}

func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		callbacks: make(map[int]Callback),
		nextID:    1,
		pending:   make(map[string]*pendingBatch),
	}
}

// Register adds a callback and returns its id for unregistration. A nil
// callback is ignored and yields id 0.
func (d *Dispatcher) Register(cb Callback) int {
	if cb == nil {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	d.callbacks[id] = cb

	return id
}

// Unregister removes a callback. Unknown ids are a no-op.
func (d *Dispatcher) Unregister(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.callbacks, id)
}

// Notify queues violations for dispatch. With batching enabled, violations
// for the same session arriving within the escalation delay coalesce into
// one event.
func (d *Dispatcher) Notify(sessionID string, violations []threshold.Violation) {
	if len(violations) == 0 {
		return
	}

	now := time.Now()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	if !d.cfg.Batching || d.cfg.EscalationDelay <= 0 {
		event := Event{
			SessionID:  sessionID,
			Violations: violations,
			FirstAt:    now,
			DispatchAt: now,
		}
		callbacks := d.admitLocked(event, now)
		d.mu.Unlock()
		deliver(callbacks, event)
		return
	}

	batch, ok := d.pending[sessionID]
	if !ok {
		batch = &pendingBatch{
			sessionID: sessionID,
			firstAt:   now,
		}
		batch.timer = time.AfterFunc(d.cfg.EscalationDelay, func() {
			d.flushPending(sessionID)
		})
		d.pending[sessionID] = batch
	}
	batch.violations = append(batch.violations, violations...)
	d.mu.Unlock()
}

// Suppressed returns how many dispatches the rate limiter has dropped.
func (d *Dispatcher) Suppressed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.suppressed
}

// Close flushes pending batches and stops accepting notifications.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true

	batches := make([]*pendingBatch, 0, len(d.pending))
	for _, batch := range d.pending {
		batch.timer.Stop()
		batches = append(batches, batch)
	}
	d.pending = make(map[string]*pendingBatch)

	type delivery struct {
		event     Event
		callbacks []Callback
	}

	now := time.Now()
	deliveries := make([]delivery, 0, len(batches))
	for _, batch := range batches {
		event := Event{
			SessionID:  batch.sessionID,
			Violations: batch.violations,
			FirstAt:    batch.firstAt,
			DispatchAt: now,
		}
		if callbacks := d.admitLocked(event, now); len(callbacks) > 0 {
			deliveries = append(deliveries, delivery{event: event, callbacks: callbacks})
		}
	}
	d.mu.Unlock()

	for _, dv := range deliveries {
		deliver(dv.callbacks, dv.event)
	}
}

func (d *Dispatcher) flushPending(sessionID string) {
	d.mu.Lock()
	batch, ok := d.pending[sessionID]
	if !ok || d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.pending, sessionID)

	now := time.Now()
	event := Event{
		SessionID:  batch.sessionID,
		Violations: batch.violations,
		FirstAt:    batch.firstAt,
		DispatchAt: now,
	}
	callbacks := d.admitLocked(event, now)
	d.mu.Unlock()

	deliver(callbacks, event)
}

// admitLocked applies the rate limit and snapshots the callback list, or
// returns nil when the event is suppressed. Caller holds d.mu; delivery
// happens after the lock is released so a callback may call back into the
// dispatcher.
func (d *Dispatcher) admitLocked(event Event, now time.Time) []Callback {
	if d.cfg.MaxAlertsPerMinute > 0 {
		cutoff := now.Add(-time.Minute)
		kept := d.dispatches[:0]
		for _, t := range d.dispatches {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		d.dispatches = kept

		if len(d.dispatches) >= d.cfg.MaxAlertsPerMinute {
			d.suppressed++
			logger.Debug().
				Str("session", event.SessionID).
				Int("violations", len(event.Violations)).
				Msg("alert suppressed by rate limit")
			return nil
		}
		d.dispatches = append(d.dispatches, now)
	}

	callbacks := make([]Callback, 0, len(d.callbacks))
	for _, cb := range d.callbacks {
		callbacks = append(callbacks, cb)
	}

	return callbacks
}

func deliver(callbacks []Callback, event Event) {
	for _, cb := range callbacks {
		fire(cb, event)
	}
}

// fire runs one callback, isolating panics so one failing observer cannot
// block delivery to the rest.
func fire(cb Callback, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Interface("panic", rec).
				Str("session", event.SessionID).
				Msg("alert callback panicked")
		}
	}()

	cb(event)
}

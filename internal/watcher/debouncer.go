package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events so a burst of saves produces one
// reindex. Events for the same path within the window merge:
//   - CREATE + MODIFY = CREATE
//   - CREATE + DELETE = nothing
//   - MODIFY + DELETE = DELETE
//   - DELETE + CREATE = MODIFY (file was replaced)
type Debouncer struct {
	window  time.Duration
	pending map[string]*pendingEvent
	mu      sync.Mutex
	output  chan []FileEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event    FileEvent
	firstOp  Operation
	deadline time.Time
}

// NewDebouncer creates a debouncer emitting batches after the window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []FileEvent, 10),
	}
}

// Add records an event, merging it with any pending event for the
// same path.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	deadline := time.Now().Add(d.window)
	if existing, ok := d.pending[event.Path]; ok {
		merged := coalesce(existing, event)
		if merged == nil {
			delete(d.pending, event.Path)
		} else {
			existing.event = *merged
			existing.deadline = deadline
		}
	} else {
		d.pending[event.Path] = &pendingEvent{event: event, firstOp: event.Operation, deadline: deadline}
	}

	d.scheduleFlush()
}

// coalesce merges a new event into a pending one. Nil means the
// events cancelled out.
func coalesce(existing *pendingEvent, next FileEvent) *FileEvent {
	switch existing.firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			return &existing.event
		case OpDelete:
			return nil
		default:
			return &next
		}
	case OpDelete:
		if next.Operation == OpCreate {
			replaced := next
			replaced.Operation = OpModify
			return &replaced
		}
		return &next
	default:
		return &next
	}
}

// scheduleFlush arms the timer for the earliest pending deadline.
// Deadlines are per path, so a busy file cannot starve a quiet one.
// Caller holds d.mu.
func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if len(d.pending) == 0 {
		return
	}

	var earliest time.Time
	for _, pe := range d.pending {
		if earliest.IsZero() || pe.deadline.Before(earliest) {
			earliest = pe.deadline
		}
	}
	d.timer = time.AfterFunc(time.Until(earliest), d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	now := time.Now()
	var events []FileEvent
	for path, pe := range d.pending {
		if pe.deadline.After(now) {
			continue
		}
		events = append(events, pe.event)
		delete(d.pending, path)
	}
	d.scheduleFlush()

	if len(events) == 0 {
		return
	}

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop stops the debouncer and closes the output channel. Safe to
// call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}

package watcher

import (
	"sync"
	"time"
)

// Debouncer collects resource events and hands them over as one Batch
// once no event arrived for the window, or as soon as maxBatch paths are
// pending.
type Debouncer struct {
	window   time.Duration
	maxBatch int
	onFlush  func(Batch)

	mu      sync.Mutex
	pending map[string]EventType
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer(window time.Duration, maxBatch int, onFlush func(Batch)) *Debouncer {
	if maxBatch <= 0 {
		maxBatch = 1
	}
	return &Debouncer{
		window:   window,
		maxBatch: maxBatch,
		onFlush:  onFlush,
		pending:  make(map[string]EventType),
	}
}

// Add records the latest event for path and restarts the window.
func (d *Debouncer) Add(path string, typ EventType) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}

	d.pending[path] = typ
	if len(d.pending) >= d.maxBatch {
		d.flush(d.take())
		return
	}

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		// A timer that fired while Add held the lock is stale.
		if d.stopped || gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.flush(d.take())
	})
	d.mu.Unlock()
}

// Pending reports how many paths wait for the next flush.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// take empties the pending set. Called with mu held.
func (d *Debouncer) take() Batch {
	b := newBatch(d.pending)
	d.pending = make(map[string]EventType)
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return b
}

// flush releases mu and hands b over.
func (d *Debouncer) flush(b Batch) {
	d.mu.Unlock()
	if !b.Empty() && d.onFlush != nil {
		d.onFlush(b)
	}
}

// Stop flushes what is pending and drops later events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.flush(d.take())
}

// Package debounce collapses bursts of values into a single call.
package debounce

import (
	"sync"
	"time"
)

const DefaultWait = 500 * time.Millisecond

// Debouncer calls fn with the last pushed value once no new value has
// arrived for wait.
type Debouncer[T any] struct {
	wait time.Duration
	fn   func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending T
	gen     uint64
	armed   bool
	stopped bool
	running sync.WaitGroup
}

func New[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Debouncer[T]{wait: wait, fn: fn}
}

// Push records v as the latest value and restarts the quiet window.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending = v
	d.armed = true
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
}

// fire ignores timers superseded by a later Push.
func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.armed = false
	d.running.Add(1)
	d.mu.Unlock()

	d.call(v)
}

func (d *Debouncer[T]) call(v T) {
	defer d.running.Done()
	d.fn(v)
}

// Flush calls fn right away with a pending value, if there is one.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	if !d.armed || d.stopped {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.armed = false
	d.running.Add(1)
	d.mu.Unlock()

	d.call(v)
}

// Stop drops any pending value. Later pushes are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.armed = false
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Wait blocks until every call of fn already started has returned. Calls
// started after Stop or Close are impossible, so Wait after either is final.
func (d *Debouncer[T]) Wait() {
	d.running.Wait()
}

// Close runs fn with a pending value, if there is one, then stops the
// debouncer and waits for every call of fn in progress, including one a
// timer started concurrently with Close.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	v, run := d.pending, d.armed && !d.stopped
	d.armed = false
	d.stopped = true
	if run {
		d.running.Add(1)
	}
	d.mu.Unlock()

	if run {
		d.call(v)
	}
	d.running.Wait()
}

package services

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of save requests into one write. Each Trigger
// restarts the timer. At most one write runs at a time; a request that
// arrives while a write is running queues exactly one follow-up write.
type Debouncer struct {
	delay time.Duration
	run   func()

	mu      sync.Mutex
	cond    *sync.Cond
	timer   *time.Timer
	gen     uint64
	running bool
	pending bool
	stopped bool
}

// NewDebouncer returns a debouncer that calls run delay after the last
// Trigger. run must read the latest state itself.
func NewDebouncer(delay time.Duration, run func()) *Debouncer {
	d := &Debouncer{delay: delay, run: run}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Trigger schedules a write, cancelling any write still waiting on the timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush cancels the timer and writes now. It returns once a write that
// started after the call has completed.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	for d.running {
		d.cond.Wait()
	}
	d.running = true
	d.mu.Unlock()

	d.loop()
}

// Pending reports whether a write is scheduled or running.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil || d.running || d.pending
}

// Stop cancels the timer and waits for a running write. Later Triggers are
// ignored; Flush still works.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	for d.running {
		d.cond.Wait()
	}
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if d.running {
		d.pending = true
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.loop()
}

// loop runs writes until no follow-up is queued. Caller has set running.
func (d *Debouncer) loop() {
	for {
		d.run()

		d.mu.Lock()
		if !d.pending {
			d.running = false
			d.cond.Broadcast()
			d.mu.Unlock()
			return
		}
		d.pending = false
		d.mu.Unlock()
	}
}

package watch

import (
	"sort"
	"sync"
	"time"
)

// DefaultDelay is used when a Debouncer is created with a non-positive delay.
const DefaultDelay = 100 * time.Millisecond

// Batch is the set of changes collected during one quiet period, one Event
// per path with the operations merged.
type Batch []Event

// Paths returns the changed paths in sorted order.
func (b Batch) Paths() []string {
	paths := make([]string, len(b))
	for i, e := range b {
		paths[i] = e.Path
	}
	return paths
}

// Debouncer coalesces events from a Source. Every new event restarts the
// delay; when it expires the pending events are delivered as one Batch.
type Debouncer struct {
	inner Source
	delay time.Duration

	mu       sync.Mutex
	pending  map[string]Event
	timer    *time.Timer
	batches  chan Batch
	errors   chan error
	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
	firing   sync.WaitGroup
}

// NewDebouncer wraps inner.
func NewDebouncer(inner Source, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}

	d := &Debouncer{
		inner:   inner,
		delay:   delay,
		pending: make(map[string]Event),
		batches: make(chan Batch, 1),
		errors:  make(chan error, 10),
		closeCh: make(chan struct{}),
	}

	d.closedWg.Add(1)
	go d.processLoop()

	return d
}

// Batches returns the channel of coalesced changes.
func (d *Debouncer) Batches() <-chan Batch {
	return d.batches
}

// Errors returns the errors forwarded from the inner source.
func (d *Debouncer) Errors() <-chan error {
	return d.errors
}

// Close stops the debouncer and the inner source. Pending events are
// discarded.
func (d *Debouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.closeCh)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = make(map[string]Event)
	d.mu.Unlock()

	err := d.inner.Close()
	d.closedWg.Wait()
	d.firing.Wait()

	close(d.batches)
	close(d.errors)
	return err
}

// Flush delivers pending events immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.fire()
}

// PendingCount returns the number of paths waiting for the quiet period.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) processLoop() {
	defer d.closedWg.Done()

	for {
		select {
		case <-d.closeCh:
			return

		case event, ok := <-d.inner.Events():
			if !ok {
				return
			}
			d.handleEvent(event)

		case err, ok := <-d.inner.Errors():
			if !ok {
				return
			}
			select {
			case d.errors <- err:
			case <-d.closeCh:
			default:
			}
		}
	}
}

func (d *Debouncer) handleEvent(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	if p, ok := d.pending[event.Path]; ok {
		p.Op |= event.Op
		p.Timestamp = event.Timestamp
		d.pending[event.Path] = p
	} else {
		d.pending[event.Path] = event
	}

	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
		return
	}
	d.timer.Reset(d.delay)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.closed || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make(Batch, 0, len(d.pending))
	for _, e := range d.pending {
		batch = append(batch, e)
	}
	d.pending = make(map[string]Event)
	d.firing.Add(1)
	d.mu.Unlock()
	defer d.firing.Done()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	// A rebuild still waiting to be picked up already covers these changes.
	select {
	case d.batches <- batch:
	case <-d.closeCh:
	default:
	}
}

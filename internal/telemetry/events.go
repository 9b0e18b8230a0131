// Package telemetry fans in best-effort status events from pipeline stages
// and connection workers into a single consumer for the status sidecar.
//
// This is diagnostic only: producers never block on a full bus and a
// missing consumer never affects request handling. That non-blocking,
// many-producers/one-consumer shape is exactly lfq's documented "Event
// Aggregation (MPSC)" pattern, so the bus is backed by an MPSC lock-free
// queue rather than a mutex-guarded slice.
package telemetry

import (
	"code.hybscloud.com/lfq"
)

// Kind identifies what a Event reports on.
type Kind int

const (
	// StageProcessed reports one item popped and transformed by a pipeline stage.
	StageProcessed Kind = iota
	// StageDropped reports an item that short-circuited a pipeline stage.
	StageDropped
	// ConnectionOpened reports a worker admitting a new connection.
	ConnectionOpened
	// ConnectionClosed reports a worker freeing a connection slot.
	ConnectionClosed
	// PlanComputed reports one completed PlanEngine run.
	PlanComputed
)

// Event is a single point-in-time observation emitted onto the bus.
type Event struct {
	Kind     Kind
	Stage    string
	QueueLen int
	QueueCap int
	WorkerID int
	Detail   string
}

// Bus is a non-blocking MPSC fan-in of Events. The zero value is not usable;
// construct with NewBus.
type Bus struct {
	q *lfq.MPSC[Event]
}

// NewBus returns a Bus with room for capacity events (rounded up to the
// next power of two by lfq). capacity must be >= 2.
func NewBus(capacity int) *Bus {
	if capacity < 2 {
		capacity = 2
	}
	return &Bus{q: lfq.NewMPSC[Event](capacity)}
}

// Publish enqueues ev without blocking. A full bus silently drops the event
// — telemetry must never slow down or stall a producer.
func (b *Bus) Publish(ev Event) {
	_ = b.q.Enqueue(&ev)
}

// TryNext pops the oldest pending event, if any. ok is false when the bus
// is currently empty.
func (b *Bus) TryNext() (ev Event, ok bool) {
	p, err := b.q.Dequeue()
	if err != nil {
		return Event{}, false
	}
	return *p, true
}

// Drain signals producers are done (or the bus is shutting down) so the
// consumer can fully empty the queue without threshold stalls. See lfq's
// Drainer documentation.
func (b *Bus) Drain() {
	b.q.Drain()
}

// Package worker implements the connection multiplexer: a fixed-size pool
// of Workers, each multiplexing many client connections through a
// readiness-driven loop, with least-loaded assignment at accept time.
//
// Grounded on original_source/src/threads/ThreadWorker.c's core loop (wait
// while empty, build a readiness set, wait for readiness, drain ready
// slots) and ThreadPool.c's least-loaded admission. Go has no portable
// select()/epoll surface over net.Conn, so readiness is emulated with a
// round-robin sweep of short per-connection read-deadline probes within
// each cycle -- a deadline-expired read means "not ready", a successful
// read means "ready" -- which preserves every testable property the literal
// select() loop gives (slot table scan order, least-loaded selection,
// POOL_FULL exactness) without requiring raw fd multiplexing.
package worker

import (
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gridguard/leop/internal/conn"
	"github.com/gridguard/leop/internal/telemetry"
)

// ErrPoolFull is returned by Pool.Add when every worker is at capacity.
var ErrPoolFull = errors.New("worker: pool full")

// probeDeadline bounds each per-connection readiness check within a sweep.
// A full sweep across 50 idle slots (the default per-worker capacity) at
// this deadline takes about 750ms, under one second. Sweeps run back to
// back with no extra wait between them.
const probeDeadline = 15 * time.Millisecond

// Worker multiplexes up to capacity connections through a readiness sweep.
type Worker struct {
	id       int
	capacity int

	mu      sync.Mutex
	cond    *sync.Cond
	slots   []*conn.Connection
	running bool

	idleTimeout time.Duration
	bus         *telemetry.Bus
	logger      *log.Logger

	stopped chan struct{}
}

// New returns a Worker with the given id and slot capacity.
func New(id, capacity int, idleTimeout time.Duration, bus *telemetry.Bus, logger *log.Logger) *Worker {
	w := &Worker{
		id:          id,
		capacity:    capacity,
		slots:       make([]*conn.Connection, capacity),
		running:     true,
		idleTimeout: idleTimeout,
		bus:         bus,
		logger:      logger,
		stopped:     make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Count reports the worker's current connection count.
func (w *Worker) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count()
}

func (w *Worker) count() int {
	n := 0
	for _, c := range w.slots {
		if c != nil {
			n++
		}
	}
	return n
}

// AddSlot places c in the first free slot and wakes the readiness loop. It
// returns false if the worker has no free slot (callers should not reach
// this under WorkerPool's least-loaded admission, but it is checked
// defensively).
func (w *Worker) AddSlot(c *conn.Connection) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, slot := range w.slots {
		if slot == nil {
			w.slots[i] = c
			w.cond.Signal()
			if w.bus != nil {
				w.bus.Publish(telemetry.Event{Kind: telemetry.ConnectionOpened, WorkerID: w.id})
			}
			return true
		}
	}
	return false
}

// Run is the worker's core loop: wait while empty, sweep all active slots
// for readiness, drive the FSM for whatever is ready, free disconnected
// slots. It returns once Shutdown has been called and every slot drained.
func (w *Worker) Run() {
	defer close(w.stopped)

	for {
		w.mu.Lock()
		for w.count() == 0 && w.running {
			w.cond.Wait()
		}
		if !w.running {
			w.mu.Unlock()
			break
		}
		active := w.activeSlotsLocked()
		w.mu.Unlock()

		w.sweep(active)
	}

	w.closeAllSlots()
}

// activeSlotsLocked snapshots the non-nil slot indices. Caller holds w.mu.
func (w *Worker) activeSlotsLocked() []int {
	idx := make([]int, 0, len(w.slots))
	for i, c := range w.slots {
		if c != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// sweep probes each active slot once for readiness (a short read deadline
// standing in for select()'s per-cycle wait) and drives the ones with data.
func (w *Worker) sweep(active []int) {
	defer func() {
		if r := recover(); r != nil && w.logger != nil {
			w.logger.Printf("worker %d: recovered panic: %v", w.id, r)
		}
	}()

	for _, i := range active {
		w.mu.Lock()
		c := w.slots[i]
		w.mu.Unlock()
		if c == nil {
			continue
		}

		if c.PollDone() {
			continue
		}

		if w.idleTimeout > 0 && c.IdleFor() > w.idleTimeout {
			w.disconnect(i, c)
			continue
		}

		line, ready, err := w.probe(c)
		if err != nil {
			w.disconnect(i, c)
			continue
		}
		if !ready {
			continue
		}
		c.HandleLine(line)
	}
}

// probe attempts one readiness check + read on c's socket. A deadline
// expiry is reported as "not ready" (ready=false, err=nil); any other read
// error means the peer disconnected.
func (w *Worker) probe(c *conn.Connection) (line string, ready bool, err error) {
	nc := c.NetConn()
	_ = nc.SetReadDeadline(time.Now().Add(probeDeadline))
	part, err := c.Reader().ReadString('\n')
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// ReadString has already drained part into its own buffer even
			// though no '\n' arrived yet; save it so the next probe's read
			// picks up where this one left off instead of losing it.
			c.SavePartial(part)
			return "", false, nil
		}
		return "", false, err
	}
	return c.TakeLine(part), true, nil
}

func (w *Worker) disconnect(i int, c *conn.Connection) {
	_ = c.Close()
	w.mu.Lock()
	w.slots[i] = nil
	w.mu.Unlock()
	if w.bus != nil {
		w.bus.Publish(telemetry.Event{Kind: telemetry.ConnectionClosed, WorkerID: w.id})
	}
	if w.logger != nil {
		w.logger.Printf("worker %d: connection %s disconnected", w.id, c.ID)
	}
}

func (w *Worker) closeAllSlots() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, c := range w.slots {
		if c != nil {
			_ = c.Close()
			w.slots[i] = nil
		}
	}
}

// Shutdown flips the run flag, wakes the loop, and waits for Run to return.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	w.running = false
	w.cond.Signal()
	w.mu.Unlock()
	<-w.stopped
}

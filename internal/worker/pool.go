package worker

import (
	"log"
	"net"
	"sync"
	"time"

	"github.com/gridguard/leop/internal/conn"
	"github.com/gridguard/leop/internal/telemetry"
)

// Pool is a fixed-size collection of Workers with least-loaded admission,
// grounded on ThreadPool_Initiate/ThreadPool_AddClient/ThreadPool_Shutdown.
type Pool struct {
	mu      sync.Mutex
	workers []*Worker
	running bool
	wg      sync.WaitGroup
}

// NewPool constructs numWorkers Workers, each with the given per-worker
// client capacity, and starts their readiness loops.
func NewPool(numWorkers, clientsPerWorker int, idleTimeout time.Duration, bus *telemetry.Bus, logger *log.Logger) *Pool {
	p := &Pool{
		workers: make([]*Worker, numWorkers),
		running: true,
	}
	for i := 0; i < numWorkers; i++ {
		p.workers[i] = New(i, clientsPerWorker, idleTimeout, bus, logger)
	}
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run()
		}(w)
	}
	return p
}

// Add admits netConn onto the worker with the fewest current connections,
// ties broken by the lowest worker index (ThreadPool_AddClient's scan order).
// It returns ErrPoolFull if every worker is already at capacity.
func (p *Pool) Add(netConn net.Conn, sub conn.Submitter, logger *log.Logger) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPoolFull
	}

	target := -1
	minClients := -1
	for i, w := range p.workers {
		c := w.Count()
		if minClients < 0 || c < minClients {
			minClients = c
			target = i
		}
	}
	p.mu.Unlock()

	if target < 0 || minClients >= p.workers[target].capacity {
		return ErrPoolFull
	}

	c := conn.New(netConn, sub, logger)
	if !p.workers[target].AddSlot(c) {
		return ErrPoolFull
	}
	if err := c.Attach(); err != nil {
		return err
	}
	return nil
}

// Shutdown stops every worker and waits for their loops to return.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	for _, w := range p.workers {
		w.Shutdown()
	}
	p.wg.Wait()
}

// Capacity reports the pool's total connection capacity (workers * per-worker slots).
func (p *Pool) Capacity() int {
	total := 0
	for _, w := range p.workers {
		total += w.capacity
	}
	return total
}

// ConnectionCount reports the pool's current total connection count across
// all workers, for the status sidecar.
func (p *Pool) ConnectionCount() int {
	total := 0
	for _, w := range p.workers {
		total += w.Count()
	}
	return total
}

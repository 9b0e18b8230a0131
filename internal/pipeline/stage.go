package pipeline

import (
	"log"
	"sync"

	"github.com/gridguard/leop/internal/queue"
	"github.com/gridguard/leop/internal/telemetry"
)

// Transform turns one IN into an OUT, or returns ok=false to short-circuit
// the stage (e.g. both sub-fetches failed). A short-circuiting transform is
// responsible for writing any error notice to the originating connection
// itself before returning.
type Transform[IN, OUT any] func(IN) (OUT, bool)

// Stage runs workerCount consumer goroutines that each pop from in,
// transform, and push to out. It closes out once in is closed and drained
// by every worker. out may be nil for a terminal stage (Compute) that has
// nothing downstream — its transform is expected to perform its side
// effect (writing the response) itself.
type Stage[IN, OUT any] struct {
	name      string
	in        *queue.Queue[IN]
	out       *queue.Queue[OUT]
	transform Transform[IN, OUT]
	workers   int
	bus       *telemetry.Bus
	logger    *log.Logger
}

// NewStage builds a Stage. bus and logger may be nil; out may be nil for a
// terminal stage.
func NewStage[IN, OUT any](name string, in *queue.Queue[IN], out *queue.Queue[OUT], transform Transform[IN, OUT], workers int, bus *telemetry.Bus, logger *log.Logger) *Stage[IN, OUT] {
	if workers < 1 {
		workers = 1
	}
	return &Stage[IN, OUT]{name: name, in: in, out: out, transform: transform, workers: workers, bus: bus, logger: logger}
}

// Run launches the stage's worker pool and blocks until all workers exit
// (which happens once in is closed and drained). The caller typically calls
// Run in its own goroutine per stage.
func (s *Stage[IN, OUT]) Run() {
	var wg sync.WaitGroup
	wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			s.loop(workerID)
		}(i)
	}
	wg.Wait()
	if s.out != nil {
		s.out.Close()
	}
}

func (s *Stage[IN, OUT]) loop(workerID int) {
	for {
		item, res := s.in.Pop()
		if res != queue.OK {
			return
		}
		s.handle(item, workerID)
	}
}

func (s *Stage[IN, OUT]) handle(item IN, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			s.logf("stage %s worker %d: recovered panic: %v", s.name, workerID, r)
		}
	}()

	out, ok := s.transform(item)
	if !ok {
		s.publish(telemetry.StageDropped, workerID)
		return
	}
	if s.out == nil {
		s.publish(telemetry.StageProcessed, workerID)
		return
	}

	if err := s.out.Push(out); err != nil {
		s.logf("stage %s worker %d: push to next queue failed: %v", s.name, workerID, err)
		return
	}
	s.publish(telemetry.StageProcessed, workerID)
}

func (s *Stage[IN, OUT]) publish(kind telemetry.Kind, workerID int) {
	if s.bus == nil {
		return
	}
	ev := telemetry.Event{Kind: kind, Stage: s.name, WorkerID: workerID}
	if s.out != nil {
		ev.QueueLen = s.out.Len()
		ev.QueueCap = s.out.Cap()
	}
	s.bus.Publish(ev)
}

func (s *Stage[IN, OUT]) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridguard/leop/internal/fetch"
	"github.com/gridguard/leop/internal/locations"
	"github.com/gridguard/leop/internal/planengine"
	"github.com/gridguard/leop/internal/priceapi"
	"github.com/gridguard/leop/internal/queue"
	"github.com/gridguard/leop/internal/telemetry"
	"github.com/gridguard/leop/internal/weatherapi"
)

// ErrQueueFull is returned by Submit when the ingress queue is at capacity.
var ErrQueueFull = fmt.Errorf("pipeline: queue full")

// Config parameterizes stage worker counts and queue capacity.
type Config struct {
	QueueCapacity  int
	FetchWorkers   int
	ParseWorkers   int
	ComputeWorkers int
	HTTPTimeout    time.Duration
}

// Pipeline owns the three bounded queues (ingress, fetched, parsed) and the
// three stage pools: Fetch -> Parse -> Compute.
type Pipeline struct {
	ingress *queue.Queue[PlanRequest]
	fetched *queue.Queue[FetchedBundle]
	parsed  *queue.Queue[ParsedBundle]

	fetchStage   *Stage[PlanRequest, FetchedBundle]
	parseStage   *Stage[FetchedBundle, ParsedBundle]
	computeStage *Stage[ParsedBundle, struct{}]

	wg               sync.WaitGroup
	lastPlanLatencyNs atomic.Int64
}

// New builds a Pipeline. fetcher performs the two upstream HTTP GETs;
// engineCfg seeds every PlanEngine run the Compute stage makes.
func New(cfg Config, fetcher *fetch.Fetcher, engineCfg planengine.SystemConfig, bus *telemetry.Bus, logger *log.Logger) *Pipeline {
	ingress := queue.New[PlanRequest](cfg.QueueCapacity)
	fetched := queue.New[FetchedBundle](cfg.QueueCapacity)
	parsed := queue.New[ParsedBundle](cfg.QueueCapacity)

	p := &Pipeline{ingress: ingress, fetched: fetched, parsed: parsed}

	p.fetchStage = NewStage("fetch", ingress, fetched, fetchTransform(fetcher, cfg.HTTPTimeout), cfg.FetchWorkers, bus, logger)
	p.parseStage = NewStage("parse", fetched, parsed, parseTransform(logger), cfg.ParseWorkers, bus, logger)
	p.computeStage = NewStage[ParsedBundle, struct{}]("compute", parsed, nil, computeTransform(engineCfg, &p.lastPlanLatencyNs), cfg.ComputeWorkers, bus, logger)

	return p
}

// Run launches all three stage pools. It blocks until every stage has
// drained and exited, so callers run it in its own goroutine.
func (p *Pipeline) Run() {
	p.wg.Add(3)
	go func() { defer p.wg.Done(); p.fetchStage.Run() }()
	go func() { defer p.wg.Done(); p.parseStage.Run() }()
	go func() { defer p.wg.Done(); p.computeStage.Run() }()
	p.wg.Wait()
}

// Submit enqueues req on ingress without blocking, reporting ErrQueueFull
// immediately if ingress is at capacity so the ClientFSM stays responsive.
func (p *Pipeline) Submit(req PlanRequest) error {
	err := p.ingress.TryPush(req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, queue.ErrFull):
		return ErrQueueFull
	default:
		return err
	}
}

// Shutdown cascades a close through ingress, then waits for every stage to
// drain and join before returning: closing ingress drains the Fetch stage,
// whose exit closes fetched and drains Parse, whose exit closes parsed and
// drains Compute.
func (p *Pipeline) Shutdown() {
	p.ingress.Close()
	p.wg.Wait()
}

func fetchTransform(fetcher *fetch.Fetcher, timeout time.Duration) Transform[PlanRequest, FetchedBundle] {
	return func(req PlanRequest) (FetchedBundle, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		loc := locations.Lookup(req.Location)
		region := req.Region
		if !locations.ValidRegion(region) {
			region = loc.Region
		}

		var weatherBody, priceBody []byte
		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			if res, err := fetcher.Get(ctx, weatherapi.BuildURL(loc.Latitude, loc.Longitude, loc.Timezone)); err == nil {
				weatherBody = res.Body
			}
		}()
		go func() {
			defer wg.Done()
			if res, err := fetcher.Get(ctx, priceapi.BuildURL(time.Now(), region)); err == nil {
				priceBody = res.Body
			}
		}()
		wg.Wait()

		// Pushed even on partial (or total) failure: empty body fields are
		// valid input to Parse, which yields empty series rather than
		// failing the request.
		return FetchedBundle{Request: req, WeatherBody: weatherBody, PriceBody: priceBody}, true
	}
}

func parseTransform(logger *log.Logger) Transform[FetchedBundle, ParsedBundle] {
	return func(b FetchedBundle) (ParsedBundle, bool) {
		return ParsedBundle{
			Request:   b.Request,
			Weather:   weatherapi.DecodeWeather(b.WeatherBody, logger),
			Prices:    priceapi.DecodePrices(b.PriceBody, logger),
			FetchedAt: time.Now(),
		}, true
	}
}

func computeTransform(cfg planengine.SystemConfig, lastLatencyNs *atomic.Int64) Transform[ParsedBundle, struct{}] {
	return func(b ParsedBundle) (struct{}, bool) {
		start := time.Now()
		ctrl := planengine.NewController(cfg)
		plan, _ := ctrl.Optimize(b.Weather, b.Prices)
		lastLatencyNs.Store(int64(time.Since(start)))
		b.Request.Conn.WriteResponse(FormatPlan(b.Request.Location, b.Request.Region, plan))
		b.Request.Conn.Done()
		return struct{}{}, true
	}
}

// QueueDepths reports the current length of each internal queue, for the
// status sidecar.
func (p *Pipeline) QueueDepths() (ingress, fetched, parsed int) {
	return p.ingress.Len(), p.fetched.Len(), p.parsed.Len()
}

// LastPlanLatency reports how long the most recent PlanEngine run took, or
// zero if none has completed yet.
func (p *Pipeline) LastPlanLatency() time.Duration {
	return time.Duration(p.lastPlanLatencyNs.Load())
}

package pipeline

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gridguard/leop/internal/fetch"
	"github.com/gridguard/leop/internal/planengine"
	"github.com/gridguard/leop/internal/priceapi"
	"github.com/gridguard/leop/internal/weatherapi"
)

// fakeConn records what the Compute stage writes back, satisfying
// ResponseWriter without pulling in the conn package (which would be a
// cyclic import, see types.go).
type fakeConn struct {
	mu   sync.Mutex
	text string
	done chan struct{}
}

func newFakeConn() *fakeConn { return &fakeConn{done: make(chan struct{}, 1)} }

func (f *fakeConn) WriteResponse(text string) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
}

func (f *fakeConn) Done() { f.done <- struct{}{} }

func (f *fakeConn) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

func testEngineConfig() planengine.SystemConfig {
	return planengine.SystemConfig{
		Solar:   planengine.SolarConfig{PanelEfficiency: 0.18, PanelAreaM2: 20},
		Battery: planengine.BatteryConfig{CapacityKWh: 13.5, MaxChargeKW: 5, MaxDischargeKW: 5, MinSoCPct: 10, MaxSoCPct: 95, CurrentSoCPct: 50},
	}
}

func newIdlePipeline(t *testing.T) *Pipeline {
	t.Helper()
	f := fetch.New(time.Second, 1)
	cfg := Config{QueueCapacity: 4, FetchWorkers: 1, ParseWorkers: 1, ComputeWorkers: 1, HTTPTimeout: time.Second}
	return New(cfg, f, testEngineConfig(), nil, nil)
}

func TestSubmitRejectsWhenIngressFull(t *testing.T) {
	p := newIdlePipeline(t)
	// Do not call Run: nothing drains ingress, so capacity fills deterministically.
	for i := 0; i < 4; i++ {
		conn := newFakeConn()
		if err := p.Submit(PlanRequest{RequestID: uuid.New(), Conn: conn, Location: "stockholm", Region: "SE3"}); err != nil {
			t.Fatalf("submit %d: want success while under capacity, got %v", i, err)
		}
	}
	conn := newFakeConn()
	if err := p.Submit(PlanRequest{RequestID: uuid.New(), Conn: conn, Location: "stockholm", Region: "SE3"}); err != ErrQueueFull {
		t.Fatalf("want ErrQueueFull once ingress saturated, got %v", err)
	}
}

func TestComputeTransformWritesResponseAndSignalsDone(t *testing.T) {
	weatherBody := []byte(`{"hourly":{"time":["2026-07-29T00:00"],"temperature_2m":[20],"relative_humidity_2m":[50],"cloud_cover":[10],"wind_speed_10m":[2],"shortwave_radiation":[800]}}`)
	priceBody := []byte(`[{"SEK_per_kWh":0.4,"EUR_per_kWh":0.04,"EXR":11,"time_start":"2026-07-29T00:00:00+02:00","time_end":"2026-07-29T01:00:00+02:00"}]`)

	conn := newFakeConn()
	parsed := ParsedBundle{
		Request: PlanRequest{RequestID: uuid.New(), Conn: conn, Location: "stockholm", Region: "SE3"},
		Weather: weatherapi.DecodeWeather(weatherBody, nil),
		Prices:  priceapi.DecodePrices(priceBody, nil),
	}

	var lastLatency atomic.Int64
	_, ok := computeTransform(testEngineConfig(), &lastLatency)(parsed)
	if !ok {
		t.Fatal("compute transform should not short-circuit on valid input")
	}

	select {
	case <-conn.done:
	case <-time.After(time.Second):
		t.Fatal("compute did not signal Done")
	}
	if conn.Text() == "" {
		t.Fatal("want a non-empty response written to the connection")
	}
}

func TestComputeTransformPartialFailureYieldsZeroEntries(t *testing.T) {
	conn := newFakeConn()
	parsed := ParsedBundle{
		Request: PlanRequest{RequestID: uuid.New(), Conn: conn, Location: "stockholm", Region: "SE3"},
		Weather: nil,
		Prices:  priceapi.DecodePrices([]byte(`[{"SEK_per_kWh":0.4,"EUR_per_kWh":0.04,"EXR":11,"time_start":"2026-07-29T00:00:00+02:00","time_end":"2026-07-29T01:00:00+02:00"}]`), nil),
	}

	var lastLatency atomic.Int64
	_, ok := computeTransform(testEngineConfig(), &lastLatency)(parsed)
	if !ok {
		t.Fatal("compute transform must still produce a response on partial failure")
	}
	<-conn.done
	if got := conn.Text(); !strings.Contains(got, "Entries: 0") {
		t.Fatalf("want 'Entries: 0' in response, got %q", got)
	}
}

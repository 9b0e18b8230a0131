package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeSource struct{}

func (fakeSource) ConnectionCount() int            { return 3 }
func (fakeSource) PoolCapacity() int               { return 100 }
func (fakeSource) QueueDepths() (int, int, int)    { return 1, 2, 3 }
func (fakeSource) LastPlanLatency() time.Duration  { return 42 * time.Millisecond }

func TestHealthHandlerReportsSnapshot(t *testing.T) {
	s := New(0, fakeSource{}, nil, 10*time.Millisecond, false)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	s.handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}

	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Connections != 3 || snap.PoolCapacity != 100 {
		t.Fatalf("want snapshot reflecting source, got %+v", snap)
	}
	if snap.IngressDepth != 1 || snap.FetchedDepth != 2 || snap.ParsedDepth != 3 {
		t.Fatalf("want queue depths from source, got %+v", snap)
	}
}

func TestReadyHandlerReportsReady(t *testing.T) {
	s := New(0, fakeSource{}, nil, 10*time.Millisecond, false)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	s.handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rr.Code)
	}
}

func TestMetricsRouteOnlyMountedWhenEnabled(t *testing.T) {
	disabled := New(0, fakeSource{}, nil, 10*time.Millisecond, false)
	rr := httptest.NewRecorder()
	disabled.handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("want 404 when metrics disabled, got %d", rr.Code)
	}

	enabled := New(0, fakeSource{}, nil, 10*time.Millisecond, true)
	rr2 := httptest.NewRecorder()
	enabled.handler().ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr2.Code != http.StatusOK {
		t.Fatalf("want 200 when metrics enabled, got %d", rr2.Code)
	}
}

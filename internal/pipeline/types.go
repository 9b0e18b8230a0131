// Package pipeline owns the three-stage Fetch -> Parse -> Compute pipeline
// that turns a PlanRequest into a textual plan written back to the
// originating connection.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/gridguard/leop/internal/planengine"
)

// ResponseWriter is the minimal surface the Compute stage needs on a
// connection: write bytes back and signal that PROCESSING -> READY can
// happen. Implemented by *conn.Connection; kept narrow here so pipeline
// never imports the conn package — conn already imports pipeline, so
// pipeline -> conn would create a cycle.
type ResponseWriter interface {
	WriteResponse(text string)
	Done()
}

// PlanRequest is immutable after creation: built by a worker, consumed by
// the Fetch stage, and never mutated downstream.
type PlanRequest struct {
	RequestID uuid.UUID
	Conn      ResponseWriter
	Location  string
	Region    string
}

// FetchedBundle carries the request identity plus two raw byte buffers.
// Either may be empty on partial fetch failure — the pipeline still
// advances it to Parse rather than discarding the request.
type FetchedBundle struct {
	Request     PlanRequest
	WeatherBody []byte
	PriceBody   []byte
}

// ParsedBundle carries the request identity plus two decoded series. The
// series need not be equal length; PlanEngine aligns by min(len).
type ParsedBundle struct {
	Request   PlanRequest
	Weather   []planengine.WeatherSample
	Prices    []planengine.PriceSample
	FetchedAt time.Time
}

// Package conn implements the per-connection state machine: CONNECTED,
// READY, PROCESSING, and the command parsing that drives transitions
// between them. Grounded on original_source/src/threads/ThreadWorker.c's
// Client_HandleState, generalized from its echo-only mock into a full
// command transition table.
package conn

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridguard/leop/internal/pipeline"
)

// State is one of the three states a Connection can occupy.
type State int

const (
	Connected State = iota
	Ready
	Processing
)

func (s State) String() string {
	switch s {
	case Connected:
		return "CONNECTED"
	case Ready:
		return "READY"
	case Processing:
		return "PROCESSING"
	default:
		return "UNKNOWN"
	}
}

const banner = "GridGuard LEOP Server\nCommands: forecast [location] [region]\nExample: forecast stockholm SE3\n\n> "
const helpText = "Commands: forecast [location] [region]\nExample: forecast stockholm SE3\n\n> "
const queueFullText = "ERROR: Pipeline queue full, try again later\n> "
const defaultLocation = "stockholm"
const defaultRegion = "SE3"

// Submitter is the narrow surface a Connection needs from the pipeline: an
// admission call that may report backpressure.
type Submitter interface {
	Submit(pipeline.PlanRequest) error
}

// Connection is one accepted TCP client, owned by exactly one Worker slot.
// It satisfies pipeline.ResponseWriter so the Compute stage can write a
// response and signal PROCESSING -> READY without the pipeline package
// importing conn (see pipeline/types.go's note on ownership direction).
type Connection struct {
	ID uuid.UUID

	netConn  net.Conn
	reader   *bufio.Reader
	pipeline Submitter
	logger   *log.Logger

	mu        sync.Mutex
	state     State
	lastTouch time.Time

	// pending holds bytes a prior probe read off the socket before hitting
	// its deadline with no '\n' yet seen. ReadString drains them into its
	// return value even on timeout, so they must be carried forward rather
	// than dropped or the next probe misreads a line's tail as a new line.
	pending strings.Builder

	// doneSignal carries the PROCESSING -> READY transition in from the
	// Compute stage: the owning worker never flips this state itself once a
	// request has been submitted, only the stage that finished it does.
	doneSignal chan struct{}
}

// New wraps an accepted net.Conn in CONNECTED state.
func New(netConn net.Conn, sub Submitter, logger *log.Logger) *Connection {
	return &Connection{
		ID:         uuid.New(),
		netConn:    netConn,
		reader:     bufio.NewReader(netConn),
		pipeline:   sub,
		logger:     logger,
		state:      Connected,
		lastTouch:  time.Now(),
		doneSignal: make(chan struct{}, 1),
	}
}

// State returns the connection's current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Touch records that the connection was active, for idle-timeout sweeps.
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastTouch = time.Now()
	c.mu.Unlock()
}

// IdleFor reports how long the connection has been quiet.
func (c *Connection) IdleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastTouch)
}

// Attach performs the CONNECTED -> READY transition and writes the banner.
func (c *Connection) Attach() error {
	c.mu.Lock()
	c.state = Ready
	c.mu.Unlock()
	return c.write(banner)
}

// HandleLine drives the ClientFSM for one newline-terminated command. It
// never closes the socket itself; EOF/read errors are handled by the
// caller.
func (c *Connection) HandleLine(line string) {
	c.Touch()
	cmd, location, region := parseCommand(line)

	switch cmd {
	case "":
		fallthrough
	case "help":
		c.write(helpText)
	case "forecast":
		req := pipeline.PlanRequest{RequestID: uuid.New(), Conn: c, Location: location, Region: region}
		c.mu.Lock()
		c.state = Processing
		c.mu.Unlock()

		if err := c.pipeline.Submit(req); err != nil {
			c.mu.Lock()
			c.state = Ready
			c.mu.Unlock()
			c.write(queueFullText)
		}
	default:
		c.write(fmt.Sprintf("ERROR: unknown command %q\n> ", cmd))
	}
}

// parseCommand extracts up to three whitespace-delimited tokens, defaulting
// location/region when absent.
func parseCommand(line string) (cmd, location, region string) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return "", defaultLocation, defaultRegion
	}
	cmd = strings.ToLower(fields[0])
	location, region = defaultLocation, defaultRegion
	if len(fields) > 1 {
		location = fields[1]
	}
	if len(fields) > 2 {
		region = strings.ToUpper(fields[2])
	}
	return cmd, location, region
}

// WriteResponse implements pipeline.ResponseWriter: the Compute stage calls
// this from its own goroutine, not the owning worker's.
func (c *Connection) WriteResponse(text string) {
	if err := c.write(text); err != nil && c.logger != nil {
		c.logger.Printf("conn %s: write response failed: %v", c.ID, err)
	}
}

// Done implements pipeline.ResponseWriter: it signals the PROCESSING ->
// READY transition back into the worker that owns this connection's slot.
func (c *Connection) Done() {
	select {
	case c.doneSignal <- struct{}{}:
	default:
	}
}

// PollDone reports whether a Done signal is pending and, if so, consumes it
// and performs the PROCESSING -> READY transition. Called by the owning
// Worker during its readiness sweep.
func (c *Connection) PollDone() bool {
	select {
	case <-c.doneSignal:
		c.mu.Lock()
		c.state = Ready
		c.mu.Unlock()
		return true
	default:
		return false
	}
}

// SavePartial appends s, a fragment read before a deadline expired with no
// '\n' yet seen, onto the pending buffer for the next probe to pick up.
func (c *Connection) SavePartial(s string) {
	if s == "" {
		return
	}
	c.mu.Lock()
	c.pending.WriteString(s)
	c.mu.Unlock()
}

// TakeLine prefixes s with any bytes saved by a prior SavePartial and clears
// the pending buffer, reassembling a command line that arrived split across
// more than one probe.
func (c *Connection) TakeLine(s string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending.Len() == 0 {
		return s
	}
	c.pending.WriteString(s)
	full := c.pending.String()
	c.pending.Reset()
	return full
}

func (c *Connection) write(s string) error {
	_, err := c.netConn.Write([]byte(s))
	return err
}

// NetConn exposes the underlying socket for the Worker's readiness sweep.
func (c *Connection) NetConn() net.Conn { return c.netConn }

// Reader exposes the buffered reader the Worker reads command lines from.
func (c *Connection) Reader() *bufio.Reader { return c.reader }

// Close closes the underlying socket. Safe to call more than once.
func (c *Connection) Close() error {
	return c.netConn.Close()
}

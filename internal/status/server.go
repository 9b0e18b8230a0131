// Package status exposes a read-only HTTP/WebSocket sidecar reporting
// dispatch-service health: connection counts, queue depths, and the
// latency of the most recent plan computation. Broadcast loop, ticker,
// health/ready endpoints, and the gorilla/websocket client registry follow
// this repository's existing web-server idiom; routing uses chi the way
// the rest of the stack's HTTP servers do.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridguard/leop/internal/telemetry"
)

// Source is the narrow surface the sidecar needs from the running service
// to render a health snapshot, kept separate from worker.Pool/pipeline.Pipeline
// so this package never imports them directly.
type Source interface {
	ConnectionCount() int
	PoolCapacity() int
	QueueDepths() (ingress, fetched, parsed int)
	LastPlanLatency() time.Duration
}

// Server is the status sidecar: health/ready/metrics over HTTP, a live
// feed over WebSocket, fed by a telemetry.Bus drained on a ticker.
type Server struct {
	source    Source
	bus       *telemetry.Bus
	startTime time.Time

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	broadcastHz   time.Duration
	enableMetrics bool

	done chan struct{}
	wg   sync.WaitGroup
}

// New builds a Server listening on the given port. broadcastHz <= 0
// defaults to once per second.
func New(port int, source Source, bus *telemetry.Bus, broadcastHz time.Duration, enableMetrics bool) *Server {
	if broadcastHz <= 0 {
		broadcastHz = time.Second
	}
	s := &Server{
		source:        source,
		bus:           bus,
		startTime:     time.Now(),
		clients:       make(map[*websocket.Conn]struct{}),
		broadcastHz:   broadcastHz,
		enableMetrics: enableMetrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/api/health", s.healthHandler)
	r.Get("/api/ready", s.readyHandler)
	r.Get("/api/ws", s.wsHandler)

	if s.enableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

// Snapshot is the JSON document served by /api/health and pushed over the
// WebSocket feed.
type Snapshot struct {
	Status          string  `json:"status"`
	Timestamp       string  `json:"timestamp"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	Connections     int     `json:"connections"`
	PoolCapacity    int     `json:"pool_capacity"`
	IngressDepth    int     `json:"ingress_depth"`
	FetchedDepth    int     `json:"fetched_depth"`
	ParsedDepth     int     `json:"parsed_depth"`
	LastPlanLatency string  `json:"last_plan_latency"`
}

func (s *Server) snapshot() Snapshot {
	ingress, fetched, parsed := s.source.QueueDepths()
	return Snapshot{
		Status:          "healthy",
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds:   time.Since(s.startTime).Seconds(),
		Connections:     s.source.ConnectionCount(),
		PoolCapacity:    s.source.PoolCapacity(),
		IngressDepth:    ingress,
		FetchedDepth:    fetched,
		ParsedDepth:     parsed,
		LastPlanLatency: s.source.LastPlanLatency().String(),
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":     true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	_ = conn.WriteJSON(s.snapshot())

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Start launches the HTTP listener, the telemetry drain loop, and the
// periodic broadcast ticker.
func (s *Server) Start() {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.drainTelemetry()
	}()
	go func() {
		defer s.wg.Done()
		s.broadcastLoop()
	}()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("status server: %v\n", err)
		}
	}()
}

// drainTelemetry periodically drains the bus so producers never stall on a
// full queue even when no client is connected to consume events.
func (s *Server) drainTelemetry() {
	if s.bus == nil {
		return
	}
	ticker := time.NewTicker(s.broadcastHz)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for {
				if _, ok := s.bus.TryNext(); !ok {
					break
				}
			}
		case <-s.done:
			s.bus.Drain()
			return
		}
	}
}

func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.broadcastHz)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.broadcastSnapshot()
		case <-s.done:
			return
		}
	}
}

func (s *Server) broadcastSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return
	}
	snap := s.snapshot()
	for c := range s.clients {
		if err := c.WriteJSON(snap); err != nil {
			c.Close()
			delete(s.clients, c)
		}
	}
}

// Stop shuts the HTTP server down and stops the background loops.
func (s *Server) Stop(ctx context.Context) error {
	close(s.done)

	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

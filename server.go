package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/gridguard/leop/internal/config"
	"github.com/gridguard/leop/internal/fetch"
	"github.com/gridguard/leop/internal/pipeline"
	"github.com/gridguard/leop/internal/planengine"
	"github.com/gridguard/leop/internal/status"
	"github.com/gridguard/leop/internal/telemetry"
	"github.com/gridguard/leop/internal/worker"
)

// Server owns the TCP listener, the connection multiplexer, and the
// fetch/parse/compute pipeline: the three cooperating subsystems that
// answer a forecast request end to end.
type Server struct {
	cfg       config.Config
	listener  net.Listener
	pool      *worker.Pool
	pipe      *pipeline.Pipeline
	bus       *telemetry.Bus
	statusSrv *status.Server
	logger    *log.Logger
}

// NewServer wires the pool, pipeline, telemetry bus, and optional status
// sidecar from cfg, but does not yet bind a listener.
func NewServer(cfg config.Config, logger *log.Logger) (*Server, error) {
	bus := telemetry.NewBus(cfg.Pipeline.TelemetryCapacity)

	httpTimeout, err := cfg.HTTP.Timeout()
	if err != nil {
		return nil, err
	}
	fetcher := fetch.New(httpTimeout, cfg.HTTP.MaxRetries)

	engineCfg := planengine.SystemConfig{
		Solar: planengine.SolarConfig{
			PanelEfficiency: cfg.Solar.PanelEfficiency,
			PanelAreaM2:     cfg.Solar.PanelAreaM2,
		},
		Battery: planengine.BatteryConfig{
			CapacityKWh:    cfg.Battery.CapacityKWh,
			MaxChargeKW:    cfg.Battery.MaxChargeKW,
			MaxDischargeKW: cfg.Battery.MaxDischargeKW,
			MinSoCPct:      cfg.Battery.MinSoCPct,
			MaxSoCPct:      cfg.Battery.MaxSoCPct,
			CurrentSoCPct:  cfg.Battery.CurrentSoCPct,
			RoundtripEff:   cfg.Battery.RoundtripEff,
		},
		Consumption: planengine.ConsumptionProfile{
			BaseLoadKW: cfg.Consumption.BaseLoadKW,
		},
	}

	pipeCfg := pipeline.Config{
		QueueCapacity:  cfg.Pipeline.QueueCapacity,
		FetchWorkers:   cfg.Pipeline.FetchWorkers,
		ParseWorkers:   cfg.Pipeline.ParseWorkers,
		ComputeWorkers: cfg.Pipeline.ComputeWorkers,
		HTTPTimeout:    httpTimeout,
	}
	pipe := pipeline.New(pipeCfg, fetcher, engineCfg, bus, logger)

	idleTimeout := time.Duration(cfg.Server.ClientIdleTimeoutSec) * time.Second
	pool := worker.NewPool(cfg.Server.MaxThreads, cfg.Server.MaxClientsPerThread, idleTimeout, bus, logger)

	s := &Server{cfg: cfg, pool: pool, pipe: pipe, bus: bus, logger: logger}

	if cfg.Status.Port > 0 {
		// status.New takes the broadcast period; convert from Hz.
		var broadcastPeriod time.Duration
		if cfg.Status.BroadcastHz > 0 {
			broadcastPeriod = time.Second / time.Duration(cfg.Status.BroadcastHz)
		}
		s.statusSrv = status.New(cfg.Status.Port, s, bus, broadcastPeriod, cfg.Status.EnableMetrics)
	}

	return s, nil
}

// Run binds the listener, starts the pipeline/status sidecar, and accepts
// connections until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		return err
	}
	s.listener = ln

	go s.pipe.Run()
	if s.statusSrv != nil {
		s.statusSrv.Start()
	}

	s.logger.Printf("listening on %s", ln.Addr())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		netConn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		if err := s.pool.Add(netConn, s.pipe, s.logger); err != nil {
			s.logger.Printf("rejecting connection: %v", err)
			netConn.Close()
		}
	}
}

// Stop shuts the worker pool down before the pipeline, so no new request
// can be submitted while in-flight ones still drain. The listener is
// already closed by Run's ctx watcher by the time Stop is called.
func (s *Server) Stop() {
	s.pool.Shutdown()
	s.pipe.Shutdown()
	if s.statusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.statusSrv.Stop(ctx)
	}
}

// ConnectionCount implements status.Source.
func (s *Server) ConnectionCount() int { return s.pool.ConnectionCount() }

// PoolCapacity implements status.Source.
func (s *Server) PoolCapacity() int { return s.pool.Capacity() }

// QueueDepths implements status.Source.
func (s *Server) QueueDepths() (ingress, fetched, parsed int) { return s.pipe.QueueDepths() }

// LastPlanLatency implements status.Source.
func (s *Server) LastPlanLatency() time.Duration { return s.pipe.LastPlanLatency() }

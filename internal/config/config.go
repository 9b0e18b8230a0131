// Package config loads and validates GridGuard's startup configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all server configuration, loaded once at startup.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	HTTP        HTTPConfig        `toml:"http"`
	Solar       SolarConfig       `toml:"solar"`
	Battery     BatteryConfig     `toml:"battery"`
	Consumption ConsumptionConfig `toml:"consumption"`
	Price       PriceConfig       `toml:"price"`
	Status      StatusConfig      `toml:"status"`
	Logging     LoggingConfig     `toml:"logging"`
}

// ServerConfig controls the TCP listener and connection multiplexer.
type ServerConfig struct {
	Port                 int    `toml:"port"`
	MaxThreads           int    `toml:"max_threads"`
	MaxClientsPerThread  int    `toml:"max_clients_per_thread"`
	ClientBufferSize     int    `toml:"client_buffer_size"`
	SelectTimeoutSec     int    `toml:"select_timeout_sec"`
	ClientIdleTimeoutSec int    `toml:"client_idle_timeout_sec"`
	DefaultLocation      string `toml:"default_location"`
	DefaultRegion        string `toml:"default_region"`
}

// PipelineConfig controls queue depths and stage worker counts.
type PipelineConfig struct {
	QueueCapacity     int `toml:"queue_capacity"`
	FetchWorkers      int `toml:"fetch_workers"`
	ParseWorkers      int `toml:"parse_workers"`
	ComputeWorkers    int `toml:"compute_workers"`
	TelemetryCapacity int `toml:"telemetry_capacity"`
}

// HTTPConfig controls the Fetcher's upstream calls.
type HTTPConfig struct {
	TimeoutSec string `toml:"timeout"`
	MaxRetries int    `toml:"max_retries"`
}

// Timeout parses HTTPConfig.TimeoutSec as a duration.
func (h HTTPConfig) Timeout() (time.Duration, error) {
	return time.ParseDuration(h.TimeoutSec)
}

// SolarConfig mirrors planengine.SolarConfig for TOML decoding.
type SolarConfig struct {
	PanelEfficiency float64 `toml:"panel_efficiency"`
	PanelAreaM2     float64 `toml:"panel_area_m2"`
	OrientationDeg  float64 `toml:"orientation_deg"`
	TiltDeg         float64 `toml:"tilt_deg"`
	PeakPowerKW     float64 `toml:"peak_power_kw"`
}

// BatteryConfig mirrors planengine.BatteryConfig for TOML decoding.
type BatteryConfig struct {
	CapacityKWh    float64 `toml:"capacity_kwh"`
	MaxChargeKW    float64 `toml:"max_charge_kw"`
	MaxDischargeKW float64 `toml:"max_discharge_kw"`
	MinSoCPct      float64 `toml:"min_soc_pct"`
	MaxSoCPct      float64 `toml:"max_soc_pct"`
	CurrentSoCPct  float64 `toml:"current_soc_pct"`
	RoundtripEff   float64 `toml:"roundtrip_efficiency"`
}

// ConsumptionConfig mirrors planengine.ConsumptionProfile for TOML decoding.
type ConsumptionConfig struct {
	BaseLoadKW  float64 `toml:"base_load_kw"`
	PeakLoadKW  float64 `toml:"peak_load_kw"`
	AvgDailyKWh float64 `toml:"avg_daily_kwh"`
}

// PriceConfig holds the price-gate setting. The dispatch algorithm does not
// read it: planengine always gates on its PriceThresholdSEKPerKWh constant
// (1.0 SEK/kWh).
type PriceConfig struct {
	ThresholdSEKPerKWh float64 `toml:"threshold_sek_per_kwh"`
}

// StatusConfig controls the observational HTTP+WebSocket sidecar. Port 0
// disables it entirely.
type StatusConfig struct {
	Port          int  `toml:"port"`
	EnableMetrics bool `toml:"enable_metrics"`
	BroadcastHz   int  `toml:"broadcast_hz"`
}

// LoggingConfig holds the log-level setting. The server's logger does not
// read it and writes every line regardless of level.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Default returns a fully populated, internally consistent configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:                 8080,
			MaxThreads:           20,
			MaxClientsPerThread:  50,
			ClientBufferSize:     4096,
			SelectTimeoutSec:     1,
			ClientIdleTimeoutSec: 300,
			DefaultLocation:      "stockholm",
			DefaultRegion:        "SE3",
		},
		Pipeline: PipelineConfig{
			QueueCapacity:     100,
			FetchWorkers:      3,
			ParseWorkers:      3,
			ComputeWorkers:    3,
			TelemetryCapacity: 1024,
		},
		HTTP: HTTPConfig{
			TimeoutSec: "30s",
			MaxRetries: 3,
		},
		Solar: SolarConfig{
			PanelEfficiency: 0.18,
			PanelAreaM2:     20,
			OrientationDeg:  180,
			TiltDeg:         35,
			PeakPowerKW:     5,
		},
		Battery: BatteryConfig{
			CapacityKWh:    13.5,
			MaxChargeKW:    5,
			MaxDischargeKW: 5,
			MinSoCPct:      10,
			MaxSoCPct:      95,
			CurrentSoCPct:  50,
			RoundtripEff:   0.9,
		},
		Consumption: ConsumptionConfig{
			BaseLoadKW:  0.5,
			PeakLoadKW:  3,
			AvgDailyKWh: 12,
		},
		Price: PriceConfig{ThresholdSEKPerKWh: 1.0},
		Status: StatusConfig{
			Port:          9090,
			EnableMetrics: true,
			BroadcastHz:   1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads config from path, falling back to Default when path does not
// exist. A present-but-malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// LoadFromReader decodes cfg from r on top of Default(), used by tests.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg to path in TOML form.
func Save(cfg Config, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks field-by-field invariants and returns the first violation.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxThreads <= 0 {
		return fmt.Errorf("server.max_threads must be positive")
	}
	if c.Server.MaxClientsPerThread <= 0 {
		return fmt.Errorf("server.max_clients_per_thread must be positive")
	}
	if c.Server.ClientBufferSize <= 0 {
		return fmt.Errorf("server.client_buffer_size must be positive")
	}
	if c.Pipeline.QueueCapacity <= 0 {
		return fmt.Errorf("pipeline.queue_capacity must be positive")
	}
	if c.Pipeline.FetchWorkers <= 0 || c.Pipeline.ParseWorkers <= 0 || c.Pipeline.ComputeWorkers <= 0 {
		return fmt.Errorf("pipeline stage worker counts must be positive")
	}
	if _, err := c.HTTP.Timeout(); err != nil {
		return fmt.Errorf("http.timeout: %w", err)
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative")
	}
	if c.Solar.PanelEfficiency < 0 || c.Solar.PanelEfficiency > 1 {
		return fmt.Errorf("solar.panel_efficiency must be within [0,1]")
	}
	if c.Battery.MinSoCPct > c.Battery.MaxSoCPct {
		return fmt.Errorf("battery.min_soc_pct must not exceed max_soc_pct")
	}
	if c.Battery.CurrentSoCPct < 0 || c.Battery.CurrentSoCPct > 100 {
		return fmt.Errorf("battery.current_soc_pct must be within [0,100]")
	}
	if c.Battery.RoundtripEff < 0 || c.Battery.RoundtripEff > 1 {
		return fmt.Errorf("battery.roundtrip_efficiency must be within [0,1]")
	}
	if c.Price.ThresholdSEKPerKWh < -1 || c.Price.ThresholdSEKPerKWh > 10 {
		return fmt.Errorf("price.threshold_sek_per_kwh out of plausible range")
	}
	return nil
}

// Package planengine implements the deterministic, rule-based dispatch
// algorithm: given aligned weather and price series plus solar/battery/
// consumption parameters, it produces a per-interval action plan.
package planengine

import "time"

// Action is the dispatch decision made for one interval.
type Action string

const (
	BuyFromGrid      Action = "BUY_FROM_GRID"
	SellToGrid       Action = "SELL_TO_GRID"
	ChargeBattery    Action = "CHARGE_BATTERY"
	DischargeBattery Action = "DISCHARGE_BATTERY"
	DirectUse        Action = "DIRECT_USE"
	Idle             Action = "IDLE"
)

// WeatherSample is one interval's weather observation.
//
// Invariants (enforced by the decoder, not re-checked here):
// 0<=CloudCoverPct<=100, 0<=HumidityPct<=100, -50<=TemperatureC<=50,
// 0<=SolarIrradianceWPerM2<=1500.
type WeatherSample struct {
	Timestamp             time.Time
	SolarIrradianceWPerM2 float64
	CloudCoverPct         float64
	TemperatureC          float64
	WindSpeedMS           float64
	HumidityPct           float64
}

// PriceSample is one interval's spot-price observation.
//
// Invariant (enforced by the decoder): -1<=PriceSEKPerKWh<=10.
type PriceSample struct {
	IntervalStart  time.Time
	IntervalEnd    time.Time
	PriceSEKPerKWh float64
	PriceEURPerKWh float64
	ExchangeRate   float64
}

// PlanInterval is one line of engine output.
type PlanInterval struct {
	Timestamp        time.Time
	Action           Action
	ProductionKWh    float64
	ConsumptionKWh   float64
	GridFlowKWh      float64 // >0 import, <0 export
	BatteryFlowKWh   float64 // >0 charging, <0 discharging
	SpotPrice        float64
	EstimatedCostSEK float64
	BatterySoCPct    float64
}

// SolarConfig is fixed at engine construction.
type SolarConfig struct {
	PanelEfficiency float64 // 0..1
	PanelAreaM2     float64
	OrientationDeg  float64
	TiltDeg         float64
	PeakPowerKW     float64
}

// BatteryConfig is fixed at engine construction. CurrentSoCPct only seeds
// the Controller's running state-of-charge; the engine advances its own
// copy through the intervals and leaves this field unchanged.
//
// Open question (see DESIGN.md): MaxChargeKW/MaxDischargeKW are treated as
// per-interval kWh caps, the source's literal convention, not a kW rate
// requiring division by interval length.
type BatteryConfig struct {
	CapacityKWh    float64
	MaxChargeKW    float64 // per-interval kWh cap, see doc comment above
	MaxDischargeKW float64 // per-interval kWh cap, see doc comment above
	MinSoCPct      float64
	MaxSoCPct      float64
	CurrentSoCPct  float64
	RoundtripEff   float64 // 0..1, reserved for future loss accounting
}

// ConsumptionProfile parameterizes the engine's consumption model. Per the
// source behavior preserved in DESIGN.md, consumption(i) currently always
// equals BaseLoadKW treated directly as a kWh-per-interval value.
type ConsumptionProfile struct {
	BaseLoadKW  float64
	PeakLoadKW  float64
	AvgDailyKWh float64
}

// Plan is the complete result of one Optimize call.
type Plan struct {
	Intervals    []PlanInterval
	TotalCostSEK float64
	TotalImport  float64
	TotalExport  float64
}

// Diagnostics carries internal quantities useful for the status sidecar and
// tests but never required by the client-facing text protocol.
type Diagnostics struct {
	EfficiencyFactors []float64 // τ(T) per interval, in output order
}

package planengine

import "math"

// PriceThresholdSEKPerKWh gates SELL/DISCHARGE vs CHARGE/BUY.
const PriceThresholdSEKPerKWh = 1.0

// performanceRatio is the empirical derate factor (cabling, inverter, soiling).
const performanceRatio = 0.75

// SystemConfig bundles the fixed parameters a Controller is built from.
type SystemConfig struct {
	Solar       SolarConfig
	Battery     BatteryConfig
	Consumption ConsumptionProfile
}

// Controller runs the dispatch algorithm over an aligned weather/price
// horizon. Construct one per plan request; the running state-of-charge,
// seeded from cfg.Battery.CurrentSoCPct, is the controller's only mutable
// state and is advanced interval by interval during Optimize. The embedded
// config itself is never modified.
type Controller struct {
	cfg SystemConfig
	soc float64
}

// NewController builds a Controller from cfg. cfg.Battery.CurrentSoCPct
// seeds the running state-of-charge.
func NewController(cfg SystemConfig) *Controller {
	return &Controller{cfg: cfg, soc: cfg.Battery.CurrentSoCPct}
}

// temperatureDerate computes τ(T) = clamp(1 - 0.005*(T-25), 0.5, 1.2). The
// floor/ceiling must be preserved byte-exactly.
func temperatureDerate(tempC float64) float64 {
	tau := 1 - 0.005*(tempC-25)
	return math.Min(1.2, math.Max(0.5, tau))
}

func production(solar SolarConfig, irradianceWPerM2, tempC float64) float64 {
	return solar.PanelAreaM2 * solar.PanelEfficiency * (irradianceWPerM2 / 1000) * performanceRatio * temperatureDerate(tempC)
}

// Optimize runs the dispatch algorithm over N = min(len(weather), len(prices))
// intervals, advancing battery state-of-charge as it goes. It never fails
// partway: on N == 0 it returns an empty Plan.
func (c *Controller) Optimize(weather []WeatherSample, prices []PriceSample) (Plan, Diagnostics) {
	n := len(weather)
	if len(prices) < n {
		n = len(prices)
	}

	plan := Plan{Intervals: make([]PlanInterval, 0, n)}
	diag := Diagnostics{EfficiencyFactors: make([]float64, 0, n)}

	battery := c.cfg.Battery
	for i := 0; i < n; i++ {
		w := weather[i]
		p := prices[i]

		tau := temperatureDerate(w.TemperatureC)
		diag.EfficiencyFactors = append(diag.EfficiencyFactors, tau)

		prod := production(c.cfg.Solar, w.SolarIrradianceWPerM2, w.TemperatureC)
		// Preserved source behavior: consumption(i) is always the base load
		// treated directly as a kWh-per-interval value (unit-name mismatch
		// noted in DESIGN.md).
		consumption := c.cfg.Consumption.BaseLoadKW
		surplus := prod - consumption
		price := p.PriceSEKPerKWh

		interval := PlanInterval{
			Timestamp:      w.Timestamp,
			ProductionKWh:  prod,
			ConsumptionKWh: consumption,
			SpotPrice:      price,
		}

		hasCapacity := battery.CapacityKWh > 0

		switch {
		case surplus > 0:
			switch {
			case price > PriceThresholdSEKPerKWh:
				interval.Action = SellToGrid
				interval.GridFlowKWh = -surplus
				interval.EstimatedCostSEK = -surplus * price
			case hasCapacity && c.soc < battery.MaxSoCPct:
				charge := math.Min(surplus, battery.MaxChargeKW)
				// Never charge past MaxSoCPct.
				charge = math.Min(charge, (battery.MaxSoCPct-c.soc)/100*battery.CapacityKWh)
				interval.Action = ChargeBattery
				interval.BatteryFlowKWh = charge
				// Surplus the battery cannot take is exported (negative flow).
				interval.GridFlowKWh = -(surplus - charge)
				c.soc += 100 * charge / battery.CapacityKWh
			default:
				interval.Action = DirectUse
				interval.GridFlowKWh = 0
			}
		default:
			deficit := -surplus
			switch {
			case price > PriceThresholdSEKPerKWh && hasCapacity && c.soc > battery.MinSoCPct:
				discharge := math.Min(deficit, battery.MaxDischargeKW)
				// Never discharge below MinSoCPct.
				discharge = math.Min(discharge, (c.soc-battery.MinSoCPct)/100*battery.CapacityKWh)
				interval.Action = DischargeBattery
				interval.BatteryFlowKWh = -discharge
				interval.GridFlowKWh = deficit - discharge
				c.soc -= 100 * discharge / battery.CapacityKWh
			default:
				interval.Action = BuyFromGrid
				interval.GridFlowKWh = deficit
				interval.EstimatedCostSEK = deficit * price
			}
		}

		interval.BatterySoCPct = c.soc
		plan.Intervals = append(plan.Intervals, interval)
		plan.TotalCostSEK += interval.EstimatedCostSEK
		if interval.GridFlowKWh > 0 {
			plan.TotalImport += interval.GridFlowKWh
		} else {
			plan.TotalExport += -interval.GridFlowKWh
		}
	}

	return plan, diag
}

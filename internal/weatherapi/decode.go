package weatherapi

import (
	"log"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/gridguard/leop/internal/planengine"
)

// response mirrors open-meteo's hourly forecast shape: one "time" array
// plus one parallel array per requested field.
type response struct {
	Hourly struct {
		Time               []string  `json:"time"`
		Temperature2m      []float64 `json:"temperature_2m"`
		RelativeHumidity2m []float64 `json:"relative_humidity_2m"`
		CloudCover         []float64 `json:"cloud_cover"`
		WindSpeed10m       []float64 `json:"wind_speed_10m"`
		ShortwaveRadiation []float64 `json:"shortwave_radiation"`
	} `json:"hourly"`
}

// timestampLayout is the canonical ISO-8601 form open-meteo's "time" field
// uses, per DESIGN.md's timestamp decision: parse and propagate unchanged.
const timestampLayout = "2006-01-02T15:04"

// DecodeWeather turns a raw open-meteo response body into a WeatherSample
// series. Malformed JSON or an empty body yields an empty series without
// error; individual out-of-range samples are dropped and logged at WARNING
// via logger, which may be nil to discard these diagnostics (matching the
// rest of this module's ambient-logging style of an explicitly-passed
// *log.Logger rather than the package-level default logger).
func DecodeWeather(body []byte, logger *log.Logger) []planengine.WeatherSample {
	if len(body) == 0 {
		return nil
	}

	var resp response
	if err := gojson.Unmarshal(body, &resp); err != nil {
		if logger != nil {
			logger.Printf("weatherapi: decode failed, returning empty series: %v", err)
		}
		return nil
	}

	n := len(resp.Hourly.Time)
	samples := make([]planengine.WeatherSample, 0, n)

	for i := 0; i < n; i++ {
		ts, err := time.Parse(timestampLayout, resp.Hourly.Time[i])
		if err != nil {
			if logger != nil {
				logger.Printf("weatherapi: dropping sample %d, bad timestamp %q: %v", i, resp.Hourly.Time[i], err)
			}
			continue
		}

		s := planengine.WeatherSample{
			Timestamp:             ts,
			SolarIrradianceWPerM2: at(resp.Hourly.ShortwaveRadiation, i),
			CloudCoverPct:         at(resp.Hourly.CloudCover, i),
			TemperatureC:          at(resp.Hourly.Temperature2m, i),
			WindSpeedMS:           at(resp.Hourly.WindSpeed10m, i),
			HumidityPct:           at(resp.Hourly.RelativeHumidity2m, i),
		}

		if !valid(s) {
			if logger != nil {
				logger.Printf("weatherapi: dropping sample %d at %s, out of range", i, ts)
			}
			continue
		}
		samples = append(samples, s)
	}

	return samples
}

func at(series []float64, i int) float64 {
	if i < 0 || i >= len(series) {
		return 0
	}
	return series[i]
}

func valid(s planengine.WeatherSample) bool {
	return s.CloudCoverPct >= 0 && s.CloudCoverPct <= 100 &&
		s.HumidityPct >= 0 && s.HumidityPct <= 100 &&
		s.TemperatureC >= -50 && s.TemperatureC <= 50 &&
		s.SolarIrradianceWPerM2 >= 0 && s.SolarIrradianceWPerM2 <= 1500
}

package priceapi

import (
	"log"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/gridguard/leop/internal/planengine"
)

// entry mirrors one element of elprisetjustnu.se's JSON array response.
type entry struct {
	SEKPerKWh float64 `json:"SEK_per_kWh"`
	EURPerKWh float64 `json:"EUR_per_kWh"`
	EXR       float64 `json:"EXR"`
	TimeStart string  `json:"time_start"`
	TimeEnd   string  `json:"time_end"`
}

// DecodePrices turns a raw elprisetjustnu.se response body into a
// PriceSample series. Malformed JSON or an empty body yields an empty
// series without error; out-of-range samples are dropped and logged at
// WARNING via logger, which may be nil to discard these diagnostics.
func DecodePrices(body []byte, logger *log.Logger) []planengine.PriceSample {
	if len(body) == 0 {
		return nil
	}

	var entries []entry
	if err := gojson.Unmarshal(body, &entries); err != nil {
		if logger != nil {
			logger.Printf("priceapi: decode failed, returning empty series: %v", err)
		}
		return nil
	}

	samples := make([]planengine.PriceSample, 0, len(entries))
	for i, e := range entries {
		start, err1 := time.Parse(time.RFC3339, e.TimeStart)
		end, err2 := time.Parse(time.RFC3339, e.TimeEnd)
		if err1 != nil || err2 != nil {
			if logger != nil {
				logger.Printf("priceapi: dropping sample %d, bad timestamps", i)
			}
			continue
		}

		s := planengine.PriceSample{
			IntervalStart:  start,
			IntervalEnd:    end,
			PriceSEKPerKWh: e.SEKPerKWh,
			PriceEURPerKWh: e.EURPerKWh,
			ExchangeRate:   e.EXR,
		}

		if s.PriceSEKPerKWh < -1 || s.PriceSEKPerKWh > 10 {
			if logger != nil {
				logger.Printf("priceapi: dropping sample %d, price %.2f out of range", i, s.PriceSEKPerKWh)
			}
			continue
		}
		samples = append(samples, s)
	}
	return samples
}

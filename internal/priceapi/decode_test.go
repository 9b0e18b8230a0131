package priceapi

import "testing"

func TestDecodePricesEmptyBody(t *testing.T) {
	if got := DecodePrices(nil, nil); len(got) != 0 {
		t.Fatalf("want empty series, got %d", len(got))
	}
}

func TestDecodePricesHappyPath(t *testing.T) {
	body := []byte(`[
		{"SEK_per_kWh":0.45,"EUR_per_kWh":0.04,"EXR":11.2,"time_start":"2026-07-29T00:00:00+02:00","time_end":"2026-07-29T01:00:00+02:00"},
		{"SEK_per_kWh":1.2,"EUR_per_kWh":0.10,"EXR":11.2,"time_start":"2026-07-29T01:00:00+02:00","time_end":"2026-07-29T02:00:00+02:00"}
	]`)

	samples := DecodePrices(body, nil)
	if len(samples) != 2 {
		t.Fatalf("want 2 samples, got %d", len(samples))
	}
	if samples[1].PriceSEKPerKWh != 1.2 {
		t.Fatalf("want 1.2, got %v", samples[1].PriceSEKPerKWh)
	}
}

func TestDecodePricesDropsOutOfRange(t *testing.T) {
	body := []byte(`[
		{"SEK_per_kWh":0.45,"EUR_per_kWh":0.04,"EXR":11.2,"time_start":"2026-07-29T00:00:00+02:00","time_end":"2026-07-29T01:00:00+02:00"},
		{"SEK_per_kWh":50,"EUR_per_kWh":4,"EXR":11.2,"time_start":"2026-07-29T01:00:00+02:00","time_end":"2026-07-29T02:00:00+02:00"}
	]`)

	samples := DecodePrices(body, nil)
	if len(samples) != 1 {
		t.Fatalf("want 1 surviving sample, got %d", len(samples))
	}
}

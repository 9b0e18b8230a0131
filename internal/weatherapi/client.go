// Package weatherapi fetches and decodes open-meteo.com forecast data into
// the engine's WeatherSample series, following the same client/URL-building
// shape as this repository's other HTTP API clients, re-pointed at
// open-meteo.com's hourly forecast endpoint.
package weatherapi

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/gridguard/leop/internal/fetch"
	"github.com/gridguard/leop/internal/planengine"
)

const baseURL = "https://api.open-meteo.com/v1/forecast"

// BuildURL constructs the forecast URL for one coordinate/timezone pair,
// requesting exactly the hourly fields the engine needs.
func BuildURL(lat, lon float64, timezone string) string {
	q := url.Values{}
	q.Set("latitude", formatFloat(lat))
	q.Set("longitude", formatFloat(lon))
	q.Set("hourly", "temperature_2m,relative_humidity_2m,cloud_cover,wind_speed_10m,shortwave_radiation")
	q.Set("timezone", timezone)
	q.Set("forecast_days", "1")
	return baseURL + "?" + q.Encode()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Client fetches and decodes the open-meteo hourly forecast.
type Client struct {
	fetcher *fetch.Fetcher
	logger  *log.Logger
}

// New returns a Client using f to perform HTTP GETs. logger receives
// dropped-sample diagnostics from DecodeWeather and may be nil.
func New(f *fetch.Fetcher, logger *log.Logger) *Client {
	return &Client{fetcher: f, logger: logger}
}

// Fetch retrieves and decodes one location's weather series. A malformed
// or empty response yields an empty series and no error — the decoder
// never fails on bad input, only drops what it cannot validate.
func (c *Client) Fetch(ctx context.Context, lat, lon float64, timezone string) ([]planengine.WeatherSample, error) {
	res, err := c.fetcher.Get(ctx, BuildURL(lat, lon, timezone))
	if err != nil {
		return nil, fmt.Errorf("weatherapi: %w", err)
	}
	return DecodeWeather(res.Body, c.logger), nil
}

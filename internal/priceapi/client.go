// Package priceapi fetches and decodes elprisetjustnu.se spot-price data
// into the engine's PriceSample series, following the same request-client
// shape as the repository's other HTTP API clients, re-pointed at
// elprisetjustnu.se's daily per-region JSON endpoint.
package priceapi

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gridguard/leop/internal/fetch"
	"github.com/gridguard/leop/internal/planengine"
)

const baseURL = "https://www.elprisetjustnu.se/api/v1/prices"

// BuildURL constructs the daily price URL for one Swedish bidding zone.
func BuildURL(day time.Time, region string) string {
	return fmt.Sprintf("%s/%04d/%02d-%02d_%s.json", baseURL, day.Year(), day.Month(), day.Day(), region)
}

// Client fetches and decodes elprisetjustnu.se daily prices.
type Client struct {
	fetcher *fetch.Fetcher
	logger  *log.Logger
}

// New returns a Client using f to perform HTTP GETs. logger receives
// dropped-sample diagnostics from DecodePrices and may be nil.
func New(f *fetch.Fetcher, logger *log.Logger) *Client {
	return &Client{fetcher: f, logger: logger}
}

// Fetch retrieves and decodes one region's price series for day. A
// malformed or empty response yields an empty series and no error.
func (c *Client) Fetch(ctx context.Context, day time.Time, region string) ([]planengine.PriceSample, error) {
	res, err := c.fetcher.Get(ctx, BuildURL(day, region))
	if err != nil {
		return nil, fmt.Errorf("priceapi: %w", err)
	}
	return DecodePrices(res.Body, c.logger), nil
}

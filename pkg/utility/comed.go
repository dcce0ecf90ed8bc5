package utility

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/common"
	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/types"
)

const (
	// ComEdCurrentHourAverage is the running average of the current hour.
	ComEdCurrentHourAverage = "currenthouraverage"
	// ComEdFiveMinuteFeed is the list of recent 5-minute prices.
	ComEdFiveMinuteFeed = "5minutefeed"
)

// ComEd implements the Provider interface for the ComEd (Commonwealth Edison)
// hourly pricing API.
type ComEd struct {
	apiURL    string
	priceType string
	client    *http.Client
}

// configuredComEd sets up flags for ComEd and returns the instance.
// It uses lflag to register command-line flags for configuration.
func configuredComEd() *ComEd {
	c := &ComEd{
		client: common.HTTPClient(10 * time.Second),
	}
	apiURL := lflag.String("comed-api-url", "https://hourlypricing.comed.com/api", "URL for the ComEd Hourly Pricing API")
	priceType := lflag.String("comed-price-type", ComEdCurrentHourAverage, "Which ComEd price to use (currenthouraverage or 5minutefeed)")

	lflag.Do(func() {
		c.apiURL = *apiURL
		c.priceType = *priceType
	})

	return c
}

// Validate ensures the configuration is valid.
func (c *ComEd) Validate() error {
	if c.apiURL == "" {
		return fmt.Errorf("comed-api-url is required")
	}
	if _, err := url.Parse(c.apiURL); err != nil {
		return fmt.Errorf("failed to parse comed url (%s): %w", c.apiURL, err)
	}
	switch c.priceType {
	case ComEdCurrentHourAverage, ComEdFiveMinuteFeed:
	default:
		return fmt.Errorf("unknown comed-price-type: %s", c.priceType)
	}
	return nil
}

type comedPriceEntry struct {
	MillisUTC string `json:"millisUTC"`
	Price     string `json:"price"`
}

// GetCurrentPrice returns the most recent price published by ComEd.
func (c *ComEd) GetCurrentPrice(ctx context.Context) (types.Price, error) {
	p, err := c.getCurrentPrice(ctx)
	if err != nil {
		return types.Price{}, fmt.Errorf("%w: %w", ErrPriceUnavailable, err)
	}
	return p, nil
}

func (c *ComEd) getCurrentPrice(ctx context.Context) (types.Price, error) {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return types.Price{}, fmt.Errorf("invalid api url: %w", err)
	}
	params := u.Query()
	params.Set("type", c.priceType)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return types.Price{}, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching price from comed", slog.String("url", u.String()))

	resp, err := c.client.Do(req)
	if err != nil {
		return types.Price{}, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Price{}, fmt.Errorf("comed api returned status: %d", resp.StatusCode)
	}

	var data []comedPriceEntry
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		// Sometimes ComEd returns empty body or non-json on error or no data
		return types.Price{}, fmt.Errorf("failed to decode response: %w", err)
	}

	var latest types.Price
	var found bool
	for _, item := range data {
		ms, err := strconv.ParseInt(item.MillisUTC, 10, 64)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse comed millisUTC", slog.String("value", item.MillisUTC), slog.Any("error", err))
			continue
		}
		cents, err := strconv.ParseFloat(item.Price, 64)
		if err != nil || math.IsNaN(cents) || math.IsInf(cents, 0) {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse comed price", slog.String("value", item.Price), slog.Any("error", err))
			continue
		}
		ts := time.UnixMilli(ms)
		if !found || ts.After(latest.TS) {
			latest = types.Price{
				Provider:    "comed",
				TS:          ts,
				CentsPerKWH: cents,
			}
			found = true
		}
	}
	if !found {
		return types.Price{}, fmt.Errorf("no prices returned (entries=%d)", len(data))
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"got current price",
		slog.Float64("price", latest.CentsPerKWH),
		slog.Time("ts", latest.TS),
	)
	return latest, nil
}

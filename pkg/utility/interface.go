package utility

import (
	"context"
	"errors"

	"github.com/raterudder/pricewatch/pkg/types"
)

// ErrPriceUnavailable wraps every failure to produce a usable price.
var ErrPriceUnavailable = errors.New("price unavailable")

// Provider defines the interface for fetching energy prices.
type Provider interface {
	// GetCurrentPrice returns the current price of electricity. The returned
	// price is always finite; otherwise the error wraps ErrPriceUnavailable.
	GetCurrentPrice(ctx context.Context) (types.Price, error)
}

package utility

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/types"
)

// Mock is a provider that always reports the same price. It is meant for dry
// runs of the notification pipeline.
type Mock struct {
	cents float64
	now   func() time.Time
}

// NewMock returns a Mock that reports cents.
func NewMock(cents float64) *Mock {
	return &Mock{cents: cents, now: time.Now}
}

func configuredMock() *Mock {
	m := NewMock(0)
	cents := lflag.String("mock-price", "3.0", "Price in cents/kWh reported by the mock utility provider")
	lflag.Do(func() {
		v, err := parseMockPrice(*cents)
		if err != nil {
			panic(err.Error())
		}
		m.cents = v
	})
	return m
}

func parseMockPrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid mock-price %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid mock-price %q: must be finite", s)
	}
	return v, nil
}

// GetCurrentPrice implements Provider.
func (m *Mock) GetCurrentPrice(ctx context.Context) (types.Price, error) {
	return types.Price{
		Provider:    "mock",
		TS:          m.now(),
		CentsPerKWH: m.cents,
	}, nil
}

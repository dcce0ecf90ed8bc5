package types

import (
	"strconv"
	"time"
)

// Price is a single reading of the real-time price of electricity.
type Price struct {
	Provider string `json:"provider"`
	// TS is when the price was observed (or the end of the interval it
	// averages, for providers that publish intervals).
	TS time.Time `json:"ts"`

	CentsPerKWH float64 `json:"centsPerKWH"`
}

// FormatCents renders a cents value the shortest way that round-trips, so
// 1.5 prints as "1.5" and 4 prints as "4".
func FormatCents(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

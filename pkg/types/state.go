package types

import (
	"time"
)

// MaxConfigHistory is how many audit entries State keeps.
const MaxConfigHistory = 20

// ConfigChange is one audit entry describing an edit to Settings.
type ConfigChange struct {
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy string    `json:"updatedBy"`
	Changes   []string  `json:"changes"`
}

// State is the record carried from one invocation to the next.
type State struct {
	// LastNotificationTime is when the last alert was successfully sent. The
	// zero value means never.
	LastNotificationTime time.Time `json:"lastNotificationTime"`
	// ChargingRecommended is whether START_CHARGE was sent more recently than
	// STOP_CHARGE.
	ChargingRecommended bool `json:"chargingRecommended"`

	LastDetectedPriceCents float64   `json:"lastDetectedPriceCents"`
	LastPriceTime          time.Time `json:"lastPriceTime"`

	// ConfigHistory is ordered oldest first.
	ConfigHistory []ConfigChange `json:"configHistory,omitempty"`
}

// AppendConfigHistory records c and evicts the oldest entries beyond
// MaxConfigHistory.
func (s *State) AppendConfigHistory(c ConfigChange) {
	h := append(s.ConfigHistory, c)
	if n := len(h) - MaxConfigHistory; n > 0 {
		h = h[n:]
	}
	// copy so the evicted prefix can be collected and callers holding the
	// old slice are not affected
	s.ConfigHistory = append([]ConfigChange(nil), h...)
}

package types

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendConfigHistory(t *testing.T) {
	var s State
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < MaxConfigHistory; i++ {
		s.AppendConfigHistory(ConfigChange{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			UpdatedBy: fmt.Sprintf("user-%d", i),
		})
	}
	require.Len(t, s.ConfigHistory, MaxConfigHistory)
	assert.Equal(t, "user-0", s.ConfigHistory[0].UpdatedBy)

	before := s.ConfigHistory

	// the 21st entry evicts exactly the oldest
	s.AppendConfigHistory(ConfigChange{UpdatedBy: "user-20", Changes: []string{"alertThresholdCents: 4 -> 3"}})
	require.Len(t, s.ConfigHistory, MaxConfigHistory)
	assert.Equal(t, "user-1", s.ConfigHistory[0].UpdatedBy)
	assert.Equal(t, "user-20", s.ConfigHistory[MaxConfigHistory-1].UpdatedBy)
	for i := 1; i < MaxConfigHistory; i++ {
		assert.Equal(t, fmt.Sprintf("user-%d", i), s.ConfigHistory[i-1].UpdatedBy)
	}

	// the slice held before the append is untouched
	assert.Equal(t, "user-0", before[0].UpdatedBy)
}

func TestStateJSON(t *testing.T) {
	raw := `{"lastNotificationTime":"2026-03-01T12:00:00Z","chargingRecommended":true,"lastDetectedPriceCents":1.5,"lastPriceTime":"2026-03-01T12:05:00Z"}`
	var s State
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	assert.True(t, s.ChargingRecommended)
	assert.Equal(t, 1.5, s.LastDetectedPriceCents)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), s.LastNotificationTime.UTC())
	assert.Nil(t, s.ConfigHistory)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "1.5", FormatCents(1.5))
	assert.Equal(t, "4", FormatCents(4))
	assert.Equal(t, "-0.3", FormatCents(-0.3))
}

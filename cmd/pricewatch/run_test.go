package main

import (
	"context"
	"testing"
	"time"

	"github.com/raterudder/pricewatch/pkg/monitor"
	"github.com/raterudder/pricewatch/pkg/notify"
	"github.com/raterudder/pricewatch/pkg/server"
	"github.com/raterudder/pricewatch/pkg/storage"
	"github.com/raterudder/pricewatch/pkg/types"
	"github.com/raterudder/pricewatch/pkg/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T) (*monitor.Monitor, storage.Database) {
	u := utility.NewMap()
	u.SetProvider("mock", utility.NewMock(5))
	db := storage.NewMemory()
	m := monitor.New(u, db, notify.NewNotifier(time.Second), types.Settings{
		AlertThresholdCents:  4,
		ChargeThresholdCents: 2,
		CooldownMinutes:      30,
		QuietHours:           types.QuietHours{Location: "UTC"},
	})
	return m, db
}

func TestRunOnce(t *testing.T) {
	m, db := newTestMonitor(t)
	srv := server.New(m, "127.0.0.1:0")

	require.NoError(t, run(context.Background(), m, srv, "once", time.Minute))

	state, err := db.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, state.LastDetectedPriceCents)
	assert.False(t, state.ChargingRecommended)
}

func TestRunLoopCanceled(t *testing.T) {
	m, db := newTestMonitor(t)
	srv := server.New(m, "127.0.0.1:0")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, run(ctx, m, srv, "loop", time.Hour))

	state, err := db.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, state.LastDetectedPriceCents)
}

func TestRunUnknownMode(t *testing.T) {
	m, _ := newTestMonitor(t)
	err := run(context.Background(), m, server.New(m, "127.0.0.1:0"), "daemon", time.Minute)
	assert.ErrorContains(t, err, "unknown mode")
}

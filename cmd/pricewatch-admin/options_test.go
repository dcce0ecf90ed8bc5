package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/raterudder/pricewatch/pkg/monitor"
	"github.com/raterudder/pricewatch/pkg/notify"
	"github.com/raterudder/pricewatch/pkg/storage"
	"github.com/raterudder/pricewatch/pkg/types"
	"github.com/raterudder/pricewatch/pkg/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsPatch(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		p, err := options{}.patch()
		require.NoError(t, err)
		assert.True(t, p.Empty())
	})

	t.Run("All", func(t *testing.T) {
		p, err := options{
			AlertThreshold:  "3.5",
			ChargeThreshold: "1",
			Cooldown:        "1h30m",
			QuietHours:      "22-6",
			QuietLocation:   "America/Chicago",
			Add:             "prod=ntfy:alerts, charge=ifttt:ev_on",
			Remove:          "test=mailto:old@example.com",
		}.patch()
		require.NoError(t, err)
		require.NotNil(t, p.AlertThresholdCents)
		assert.Equal(t, 3.5, *p.AlertThresholdCents)
		require.NotNil(t, p.ChargeThresholdCents)
		assert.Equal(t, 1.0, *p.ChargeThresholdCents)
		require.NotNil(t, p.CooldownMinutes)
		assert.Equal(t, 90.0, *p.CooldownMinutes)
		assert.Equal(t, &types.QuietHours{StartHour: 22, EndHour: 6, Location: "America/Chicago"}, p.QuietHours)
		assert.Equal(t, []types.RecipientChange{
			{Channel: types.ChannelProd, Destination: "ntfy:alerts"},
			{Channel: types.ChannelCharge, Destination: "ifttt:ev_on"},
		}, p.AddRecipients)
		assert.Equal(t, []types.RecipientChange{
			{Channel: types.ChannelTest, Destination: "mailto:old@example.com"},
		}, p.RemoveRecipients)
	})

	t.Run("Invalid", func(t *testing.T) {
		for _, o := range []options{
			{AlertThreshold: "cheap"},
			{ChargeThreshold: "1c"},
			{Cooldown: "30"},
			{QuietHours: "22"},
			{QuietHours: "a-6"},
			{QuietLocation: "UTC"},
			{Add: "prod"},
			{Remove: "pager=ntfy:x"},
		} {
			_, err := o.patch()
			assert.Error(t, err, "%+v", o)
		}
	})
}

func TestRun(t *testing.T) {
	u := utility.NewMap()
	u.SetProvider("mock", utility.NewMock(3))
	db := storage.NewMemory()
	m := monitor.New(u, db, notify.NewNotifier(time.Second), types.Settings{
		AlertThresholdCents:  4,
		ChargeThresholdCents: 2,
		CooldownMinutes:      30,
		QuietHours:           types.QuietHours{Location: "America/Chicago"},
	})
	ctx := context.Background()

	require.NoError(t, run(ctx, io.Discard, m, options{AlertThreshold: "3", Add: "prod=ntfy:alerts"}, "tester", "", "", false))

	settings, _, err := db.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, settings.AlertThresholdCents)
	assert.Equal(t, []string{"ntfy:alerts"}, settings.Recipients.Prod)

	state, err := db.GetState(ctx)
	require.NoError(t, err)
	require.Len(t, state.ConfigHistory, 1)
	assert.Equal(t, "tester", state.ConfigHistory[0].UpdatedBy)

	t.Run("Quiet Hours Keep Location", func(t *testing.T) {
		require.NoError(t, run(ctx, io.Discard, m, options{QuietHours: "22-6"}, "tester", "", "", false))

		settings, _, err := db.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, types.QuietHours{StartHour: 22, EndHour: 6, Location: "America/Chicago"}, settings.QuietHours)
	})

	t.Run("Validation", func(t *testing.T) {
		err := run(ctx, io.Discard, m, options{Cooldown: "-5m"}, "tester", "", "", false)
		assert.Error(t, err)
	})

	t.Run("Send Test Without Recipients", func(t *testing.T) {
		err := run(ctx, io.Discard, m, options{}, "tester", "charge", "1.5", false)
		assert.ErrorIs(t, err, monitor.ErrNoRecipients)
	})

	t.Run("Show", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, run(ctx, &buf, m, options{}, "tester", "", "", true))

		var shown struct {
			Settings types.Settings `json:"settings"`
			Defaults types.Settings `json:"defaults"`
			State    types.State    `json:"state"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &shown))
		assert.Equal(t, 3.0, shown.Settings.AlertThresholdCents)
		assert.Equal(t, 4.0, shown.Defaults.AlertThresholdCents)
		assert.Equal(t, "tester", shown.State.ConfigHistory[0].UpdatedBy)
	})
}

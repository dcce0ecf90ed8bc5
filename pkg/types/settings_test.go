package types

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = Settings{
	AlertThresholdCents:  4.0,
	ChargeThresholdCents: 2.0,
	CooldownMinutes:      30,
	QuietHours:           QuietHours{StartHour: 0, EndHour: 6, Location: "America/Chicago"},
	Recipients: Recipients{
		Test:   []string{"ntfy:comed-test"},
		Charge: []string{"mailto:owner@example.com"},
	},
}

func TestMigrateSettings(t *testing.T) {
	t.Run("v0: seeds from defaults", func(t *testing.T) {
		s, changed, err := MigrateSettings(Settings{}, 0, testDefaults)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 4.0, s.AlertThresholdCents)
		assert.Equal(t, 2.0, s.ChargeThresholdCents)
		assert.Equal(t, 30.0, s.CooldownMinutes)
		assert.Equal(t, 0, s.QuietHours.StartHour)
		assert.Equal(t, 6, s.QuietHours.EndHour)
		assert.Equal(t, "America/Chicago", s.QuietHours.Location)
		assert.Equal(t, []string{"ntfy:comed-test"}, s.Recipients.Test)
		assert.Empty(t, s.Recipients.Prod)
		assert.Equal(t, []string{"mailto:owner@example.com"}, s.Recipients.Charge)
	})

	t.Run("v0: keeps explicit values", func(t *testing.T) {
		s, _, err := MigrateSettings(Settings{
			AlertThresholdCents: 3.0,
			Recipients:          Recipients{Charge: []string{"ifttt:start"}},
		}, 0, testDefaults)
		require.NoError(t, err)
		assert.Equal(t, 3.0, s.AlertThresholdCents)
		assert.Equal(t, []string{"ifttt:start"}, s.Recipients.Charge)
	})

	t.Run("v1 to v2: location defaults to central time", func(t *testing.T) {
		s, changed, err := MigrateSettings(Settings{AlertThresholdCents: 4}, 1, Settings{})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, DefaultQuietHoursLocation, s.QuietHours.Location)
		assert.Equal(t, 4.0, s.AlertThresholdCents)
	})

	t.Run("no change: current version", func(t *testing.T) {
		current := Settings{AlertThresholdCents: 1}
		s, changed, err := MigrateSettings(current, CurrentSettingsVersion, testDefaults)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, current, s)
	})
}

func TestQuietHours(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	at := func(h, m int) time.Time {
		return time.Date(2026, 1, 15, h, m, 0, 0, chicago)
	}

	q := QuietHours{StartHour: 0, EndHour: 6, Location: "America/Chicago"}
	for _, tc := range []struct {
		t     time.Time
		quiet bool
	}{
		{at(0, 0), true},
		{at(3, 30), true},
		{at(5, 59), true},
		{at(6, 0), false},
		{at(12, 0), false},
		{at(23, 59), false},
	} {
		got, err := q.Contains(tc.t)
		require.NoError(t, err)
		assert.Equal(t, tc.quiet, got, tc.t.String())
	}

	t.Run("evaluated in configured location", func(t *testing.T) {
		// 08:00 UTC is 02:00 in Chicago in January
		got, err := q.Contains(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("wraps midnight", func(t *testing.T) {
		wrap := QuietHours{StartHour: 22, EndHour: 6, LocationPtr: chicago}
		for h, want := range map[int]bool{21: false, 22: true, 23: true, 0: true, 5: true, 6: false} {
			got, err := wrap.Contains(at(h, 0))
			require.NoError(t, err)
			assert.Equal(t, want, got, "hour %d", h)
		}
	})

	t.Run("empty window disabled", func(t *testing.T) {
		got, err := QuietHours{StartHour: 3, EndHour: 3}.Contains(at(3, 0))
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("bad location", func(t *testing.T) {
		_, err := QuietHours{StartHour: 0, EndHour: 6, Location: "Nowhere/Special"}.Contains(at(1, 0))
		assert.Error(t, err)
	})
}

func TestRecipients(t *testing.T) {
	var r Recipients
	assert.True(t, r.Add(ChannelCharge, "mailto:a@example.com"))
	assert.False(t, r.Add(ChannelCharge, "mailto:a@example.com"), "duplicates are ignored")
	assert.True(t, r.Add(ChannelCharge, "ifttt:charge"))
	assert.False(t, r.Add(Channel("bogus"), "ntfy:x"))
	assert.Equal(t, []string{"mailto:a@example.com", "ifttt:charge"}, r.For(ChannelCharge))
	assert.Empty(t, r.For(ChannelProd))

	orig := r
	assert.True(t, r.Remove(ChannelCharge, "mailto:a@example.com"))
	assert.False(t, r.Remove(ChannelCharge, "mailto:a@example.com"))
	assert.Equal(t, []string{"ifttt:charge"}, r.For(ChannelCharge))
	// copies taken before a mutation are unaffected
	assert.Len(t, orig.For(ChannelCharge), 2)
}

func TestParseChannel(t *testing.T) {
	c, err := ParseChannel(" Charge ")
	require.NoError(t, err)
	assert.Equal(t, ChannelCharge, c)

	_, err = ParseChannel("sms")
	assert.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, testDefaults.Validate())

	bad := testDefaults
	bad.CooldownMinutes = -1
	bad.AlertThresholdCents = math.NaN()
	bad.QuietHours.EndHour = 24
	bad.Recipients.Prod = []string{"no-scheme"}
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "cooldownMinutes cannot be negative")
	assert.ErrorContains(t, err, "alertThresholdCents must be a finite number")
	assert.ErrorContains(t, err, "quietHours.endHour")
	assert.ErrorContains(t, err, `invalid destination "no-scheme"`)

	// negative thresholds are fine, ComEd prices do go negative
	neg := testDefaults
	neg.ChargeThresholdCents = -1
	assert.NoError(t, neg.Validate())
}

func TestSettingsCooldown(t *testing.T) {
	assert.Equal(t, 90*time.Second, Settings{CooldownMinutes: 1.5}.Cooldown())
}

func TestDiffSettings(t *testing.T) {
	a := testDefaults
	b := testDefaults
	b.Recipients.Charge = nil
	b.AlertThresholdCents = 3.5
	b.Recipients.Add(ChannelCharge, "mailto:new@example.com")
	b.QuietHours.EndHour = 7

	assert.Equal(t, []string{
		"alertThresholdCents: 4 -> 3.5",
		"quietHours: 00:00-06:00 America/Chicago -> 00:00-07:00 America/Chicago",
		"recipients.charge: added mailto:new@example.com",
		"recipients.charge: removed mailto:owner@example.com",
	}, DiffSettings(a, b))

	assert.Empty(t, DiffSettings(a, a))
}

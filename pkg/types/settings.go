package types

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// CurrentSettingsVersion is the current version of the settings struct.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 2

// DefaultQuietHoursLocation is the timezone ComEd prices are published in.
const DefaultQuietHoursLocation = "America/Chicago"

// Channel is a named group of notification destinations.
type Channel string

const (
	// ChannelTest receives a status line on every run.
	ChannelTest Channel = "test"
	// ChannelProd receives low price alerts.
	ChannelProd Channel = "prod"
	// ChannelCharge receives START_CHARGE/STOP_CHARGE transitions.
	ChannelCharge Channel = "charge"
)

// Channels lists every known channel in display order.
var Channels = []Channel{ChannelTest, ChannelProd, ChannelCharge}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(Channels, c) {
		return "", fmt.Errorf("unknown channel: %q", s)
	}
	return c, nil
}

// QuietHours is a daily window [StartHour, EndHour) during which alert and
// charge notifications are suppressed. A window with StartHour > EndHour
// wraps past midnight and StartHour == EndHour disables it.
type QuietHours struct {
	StartHour   int            `json:"startHour"`
	EndHour     int            `json:"endHour"`
	Location    string         `json:"location"`
	LocationPtr *time.Location `json:"-"`
}

// Contains checks if t falls within quiet hours.
func (q QuietHours) Contains(t time.Time) (bool, error) {
	if q.LocationPtr != nil {
		t = t.In(q.LocationPtr)
	} else if q.Location != "" {
		loc, err := time.LoadLocation(q.Location)
		if err != nil {
			return false, fmt.Errorf("failed to load location %s: %w", q.Location, err)
		}
		t = t.In(loc)
	}
	h := t.Hour()
	switch {
	case q.StartHour == q.EndHour:
		return false, nil
	case q.StartHour < q.EndHour:
		return h >= q.StartHour && h < q.EndHour, nil
	default:
		return h >= q.StartHour || h < q.EndHour, nil
	}
}

func (q QuietHours) String() string {
	loc := q.Location
	if loc == "" {
		loc = "Local"
	}
	return fmt.Sprintf("%02d:00-%02d:00 %s", q.StartHour, q.EndHour, loc)
}

// Recipients holds the destinations for each channel. A destination is
// "scheme:target", e.g. "ntfy:my-topic" or "mailto:5555555555@tmomail.net".
type Recipients struct {
	Test   []string `json:"test"`
	Prod   []string `json:"prod"`
	Charge []string `json:"charge"`
}

func (r *Recipients) list(c Channel) *[]string {
	switch c {
	case ChannelTest:
		return &r.Test
	case ChannelProd:
		return &r.Prod
	case ChannelCharge:
		return &r.Charge
	}
	return nil
}

// For returns the destinations for a channel. Unknown channels have none.
func (r Recipients) For(c Channel) []string {
	if l := r.list(c); l != nil {
		return *l
	}
	return nil
}

// Add appends dest to the channel unless it is already there. It returns
// whether anything changed.
func (r *Recipients) Add(c Channel, dest string) bool {
	l := r.list(c)
	if l == nil || dest == "" || slices.Contains(*l, dest) {
		return false
	}
	*l = append(slices.Clone(*l), dest)
	return true
}

// Remove deletes dest from the channel and returns whether it was present.
func (r *Recipients) Remove(c Channel, dest string) bool {
	l := r.list(c)
	if l == nil {
		return false
	}
	i := slices.Index(*l, dest)
	if i < 0 {
		return false
	}
	*l = slices.Delete(slices.Clone(*l), i, i+1)
	return true
}

// Settings is the configuration the decision engine runs with. It is stored
// alongside the state so it can be edited without redeploying, and is read
// once per invocation.
type Settings struct {
	// Alert when the price is strictly under this amount (in cents/kWh).
	AlertThresholdCents float64 `json:"alertThresholdCents"`
	// Recommend charging when the price is at or under this amount.
	ChargeThresholdCents float64 `json:"chargeThresholdCents"`
	// Minimum time between two successful alerts.
	CooldownMinutes float64 `json:"cooldownMinutes"`

	QuietHours QuietHours `json:"quietHours"`
	Recipients Recipients `json:"recipients"`
}

// Cooldown returns CooldownMinutes as a duration.
func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.CooldownMinutes * float64(time.Minute))
}

// Validate checks the settings for values that would make the engine
// misbehave.
func (s Settings) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"alertThresholdCents", s.AlertThresholdCents},
		{"chargeThresholdCents", s.ChargeThresholdCents},
		{"cooldownMinutes", s.CooldownMinutes},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			errs = append(errs, fmt.Errorf("%s must be a finite number", f.name))
		}
	}
	if s.CooldownMinutes < 0 {
		errs = append(errs, errors.New("cooldownMinutes cannot be negative"))
	}
	if s.QuietHours.StartHour < 0 || s.QuietHours.StartHour > 23 {
		errs = append(errs, errors.New("quietHours.startHour must be between 0 and 23"))
	}
	if s.QuietHours.EndHour < 0 || s.QuietHours.EndHour > 23 {
		errs = append(errs, errors.New("quietHours.endHour must be between 0 and 23"))
	}
	if s.QuietHours.Location != "" {
		if _, err := time.LoadLocation(s.QuietHours.Location); err != nil {
			errs = append(errs, fmt.Errorf("quietHours.location: %w", err))
		}
	}
	for _, c := range Channels {
		for _, d := range s.Recipients.For(c) {
			if scheme, target, ok := strings.Cut(d, ":"); !ok || scheme == "" || target == "" {
				errs = append(errs, fmt.Errorf("recipients.%s: invalid destination %q (want scheme:target)", c, d))
			}
		}
	}
	return errors.Join(errs...)
}

// MigrateSettings migrates the settings to the current version. defaults
// supplies the values used to seed fields introduced by each version.
// It returns the migrated settings, a boolean indicating if changes were made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int, defaults Settings) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if s.AlertThresholdCents == 0 {
				s.AlertThresholdCents = defaults.AlertThresholdCents
				migrated = true
			}
			if s.ChargeThresholdCents == 0 {
				s.ChargeThresholdCents = defaults.ChargeThresholdCents
				migrated = true
			}
			if s.CooldownMinutes == 0 {
				s.CooldownMinutes = defaults.CooldownMinutes
				migrated = true
			}
			if s.QuietHours.StartHour == 0 && s.QuietHours.EndHour == 0 {
				s.QuietHours.StartHour = defaults.QuietHours.StartHour
				s.QuietHours.EndHour = defaults.QuietHours.EndHour
				migrated = true
			}
			for _, c := range Channels {
				if len(s.Recipients.For(c)) > 0 {
					continue
				}
				for _, d := range defaults.Recipients.For(c) {
					if s.Recipients.Add(c, d) {
						migrated = true
					}
				}
			}
		case 2:
			// version 2: quiet hours are evaluated in an explicit timezone
			if s.QuietHours.Location == "" {
				s.QuietHours.Location = defaults.QuietHours.Location
				if s.QuietHours.Location == "" {
					s.QuietHours.Location = DefaultQuietHoursLocation
				}
				migrated = true
			}
		default:
			return s, false, fmt.Errorf("unknown settings version: %d", version)
		}
	}

	return s, migrated, nil
}

// DiffSettings describes, one line per change, how b differs from a.
func DiffSettings(a, b Settings) []string {
	var changes []string
	num := func(name string, x, y float64) {
		if x != y {
			changes = append(changes, fmt.Sprintf("%s: %s -> %s", name, FormatCents(x), FormatCents(y)))
		}
	}
	num("alertThresholdCents", a.AlertThresholdCents, b.AlertThresholdCents)
	num("chargeThresholdCents", a.ChargeThresholdCents, b.ChargeThresholdCents)
	num("cooldownMinutes", a.CooldownMinutes, b.CooldownMinutes)
	if a.QuietHours.StartHour != b.QuietHours.StartHour ||
		a.QuietHours.EndHour != b.QuietHours.EndHour ||
		a.QuietHours.Location != b.QuietHours.Location {
		changes = append(changes, fmt.Sprintf("quietHours: %s -> %s", a.QuietHours, b.QuietHours))
	}
	for _, c := range Channels {
		before, after := a.Recipients.For(c), b.Recipients.For(c)
		for _, d := range after {
			if !slices.Contains(before, d) {
				changes = append(changes, fmt.Sprintf("recipients.%s: added %s", c, d))
			}
		}
		for _, d := range before {
			if !slices.Contains(after, d) {
				changes = append(changes, fmt.Sprintf("recipients.%s: removed %s", c, d))
			}
		}
	}
	return changes
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/controller"
	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/notify"
	"github.com/raterudder/pricewatch/pkg/storage"
	"github.com/raterudder/pricewatch/pkg/types"
	"github.com/raterudder/pricewatch/pkg/utility"
)

const testTitle = "TEST EMAIL - ComEd Price Alert"

// DefaultInterval is how often Loop runs when nothing else is configured.
const DefaultInterval = 5 * time.Minute

// ErrNoRecipients is returned by SendTest when the channel has no
// destinations.
var ErrNoRecipients = errors.New("no recipients configured")

// Deliverer fans a message out to a list of destinations.
type Deliverer interface {
	Deliver(ctx context.Context, recipients []string, title, body string) notify.Result
}

// Monitor runs invocations: fetch the price, decide, notify and persist.
type Monitor struct {
	utilities  *utility.Map
	storage    storage.Database
	notifier   Deliverer
	controller *controller.Controller

	defaults     types.Settings
	fetchTimeout time.Duration
	now          func() time.Time

	// serializes invocations with settings updates
	mu sync.Mutex
}

// New returns a Monitor. defaults seeds the stored settings on first use.
func New(u *utility.Map, s storage.Database, n Deliverer, defaults types.Settings) *Monitor {
	return &Monitor{
		utilities:    u,
		storage:      s,
		notifier:     n,
		controller:   controller.NewController(),
		defaults:     defaults,
		fetchTimeout: 10 * time.Second,
		now:          time.Now,
	}
}

// Configured returns a Monitor whose default settings come from flags.
func Configured(u *utility.Map, s storage.Database, n Deliverer) *Monitor {
	m := New(u, s, n, types.Settings{})

	alert := lflag.String("alert-threshold", "4.0", "Alert when the price is under this many cents/kWh")
	charge := lflag.String("charge-threshold", "2.0", "Recommend charging when the price is at or under this many cents/kWh")
	cooldown := lflag.Duration("cooldown", 30*time.Minute, "Minimum time between two alerts")
	quietStart := lflag.String("quiet-start", "0", "Hour (0-23) quiet hours start")
	quietEnd := lflag.String("quiet-end", "6", "Hour (0-23) quiet hours end")
	quietLocation := lflag.String("quiet-location", types.DefaultQuietHoursLocation, "Timezone quiet hours are evaluated in")
	testRecipients := lflag.String("test-recipients", "", "comma-delimited destinations for the status message")
	prodRecipients := lflag.String("prod-recipients", "", "comma-delimited destinations for price alerts")
	chargeRecipients := lflag.String("charge-recipients", "", "comma-delimited destinations for START_CHARGE and STOP_CHARGE")
	fetchTimeout := lflag.Duration("fetch-timeout", 10*time.Second, "Maximum time to spend fetching the current price")

	lflag.Do(func() {
		var err error
		if m.defaults.AlertThresholdCents, err = strconv.ParseFloat(*alert, 64); err != nil {
			panic(fmt.Sprintf("invalid alert-threshold %q: %v", *alert, err))
		}
		if m.defaults.ChargeThresholdCents, err = strconv.ParseFloat(*charge, 64); err != nil {
			panic(fmt.Sprintf("invalid charge-threshold %q: %v", *charge, err))
		}
		m.defaults.CooldownMinutes = cooldown.Minutes()
		if m.defaults.QuietHours.StartHour, err = strconv.Atoi(*quietStart); err != nil {
			panic(fmt.Sprintf("invalid quiet-start %q: %v", *quietStart, err))
		}
		if m.defaults.QuietHours.EndHour, err = strconv.Atoi(*quietEnd); err != nil {
			panic(fmt.Sprintf("invalid quiet-end %q: %v", *quietEnd, err))
		}
		m.defaults.QuietHours.Location = *quietLocation
		m.defaults.Recipients = types.Recipients{
			Test:   splitList(*testRecipients),
			Prod:   splitList(*prodRecipients),
			Charge: splitList(*chargeRecipients),
		}
		if err := m.defaults.Validate(); err != nil {
			panic(fmt.Sprintf("invalid default settings: %v", err))
		}

		if *fetchTimeout <= 0 {
			panic("fetch-timeout must be positive")
		}
		m.fetchTimeout = *fetchTimeout
	})
	return m
}

func splitList(s string) []string {
	var l []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			l = append(l, v)
		}
	}
	return l
}

// Defaults returns the settings used when none are stored.
func (m *Monitor) Defaults() types.Settings {
	return m.defaults
}

// Settings returns the stored settings, migrating them to the current version
// first. A migration is persisted so it only happens once.
func (m *Monitor) Settings(ctx context.Context) (types.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadSettings(ctx)
}

func (m *Monitor) loadSettings(ctx context.Context) (types.Settings, error) {
	settings, version, err := m.storage.GetSettings(ctx)
	if err != nil {
		return types.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	if version < types.CurrentSettingsVersion {
		log.Ctx(ctx).InfoContext(ctx, "migrating settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
		newSettings, changed, err := types.MigrateSettings(settings, version, m.defaults)
		if err != nil {
			// Log error but return settings as is (best effort)
			log.Ctx(ctx).ErrorContext(ctx, "failed to migrate settings", slog.Int("currentVersion", version), slog.Any("error", err))
			return settings, nil
		}
		// save even when unchanged so the version is bumped
		if err := m.storage.SetSettings(ctx, newSettings, types.CurrentSettingsVersion); err != nil {
			// Return migrated settings even if save failed, so this run works with new defaults
			log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated settings", slog.Any("error", err))
		} else {
			log.Ctx(ctx).InfoContext(ctx, "saved migrated settings", slog.Int("oldVersion", version), slog.Bool("changed", changed))
		}
		settings = newSettings
	}
	return settings, nil
}

// state reads the persisted state. An unreadable or corrupt state is treated
// as the zero state.
func (m *Monitor) state(ctx context.Context) types.State {
	state, err := m.storage.GetState(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to read state, using zero state", slog.Any("error", err))
		return types.State{}
	}
	return state
}

// Status returns the persisted state and the effective settings.
func (m *Monitor) Status(ctx context.Context) (types.State, types.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, err := m.loadSettings(ctx)
	if err != nil {
		return types.State{}, types.Settings{}, err
	}
	state, err := m.storage.GetState(ctx)
	if err != nil {
		return types.State{}, types.Settings{}, fmt.Errorf("failed to get state: %w", err)
	}
	return state, settings, nil
}

// Loop calls RunOnce, sleeps for interval and repeats until ctx is done. A
// failed invocation is logged and never stops the loop.
func (m *Monitor) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval: %v", interval)
	}
	for {
		if _, err := m.RunOnce(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "invocation failed", slog.Any("error", err))
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// SendTest sends a test message to every destination of channel. An empty
// priceLabel uses the current price.
func (m *Monitor) SendTest(ctx context.Context, channel types.Channel, priceLabel string) (notify.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings, err := m.loadSettings(ctx)
	if err != nil {
		return notify.Result{}, err
	}
	recipients := settings.Recipients.For(channel)
	if len(recipients) == 0 {
		return notify.Result{}, fmt.Errorf("%w for channel %s", ErrNoRecipients, channel)
	}

	if priceLabel == "" {
		priceLabel = "unknown"
		if price, err := m.fetch(ctx); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to fetch price for test message", slog.Any("error", err))
		} else {
			priceLabel = types.FormatCents(price.CentsPerKWH)
		}
	}

	body := fmt.Sprintf("This is a test message sent by an administrator.\n\nCurrent ComEd Price: %s¢/kWh", priceLabel)
	res := m.notifier.Deliver(ctx, recipients, testTitle, body)
	if !res.OK() {
		return res, fmt.Errorf("failed to send test message: %w", res.Err())
	}
	return res, nil
}

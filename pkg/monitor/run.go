package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/raterudder/pricewatch/pkg/controller"
	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/types"
)

// ActionResult is the delivery outcome of one action.
type ActionResult struct {
	Kind      controller.ActionKind `json:"kind"`
	Attempted int                   `json:"attempted"`
	Delivered int                   `json:"delivered"`
	Errors    []string              `json:"errors,omitempty"`
}

// Report describes what one invocation did.
type Report struct {
	RunID    string              `json:"runID"`
	Price    types.Price         `json:"price"`
	Decision controller.Decision `json:"decision"`
	Results  []ActionResult      `json:"results"`
	State    types.State         `json:"state"`
	// StateSaved is false when persisting the state failed.
	StateSaved bool `json:"stateSaved"`
}

func (m *Monitor) fetch(ctx context.Context) (types.Price, error) {
	provider, err := m.utilities.Current()
	if err != nil {
		return types.Price{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()
	return provider.GetCurrentPrice(ctx)
}

// RunOnce performs one invocation. When the price cannot be fetched it
// returns the error without reading or writing state. Every other failure is
// logged and degrades: unreadable settings fall back to the defaults, an
// unreadable state to the zero state, and failed deliveries only affect the
// cooldown.
func (m *Monitor) RunOnce(ctx context.Context) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	runID := uuid.NewString()
	ctx = log.WithAttrs(ctx, slog.String("runID", runID))
	report := Report{RunID: runID}

	price, err := m.fetch(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get current price", slog.Any("error", err))
		return report, fmt.Errorf("failed to get current price: %w", err)
	}
	report.Price = price
	log.Ctx(ctx).DebugContext(ctx, "got current price", slog.Float64("cents", price.CentsPerKWH), slog.Time("ts", price.TS))

	settings, err := m.loadSettings(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to load settings, using defaults", slog.Any("error", err))
		settings = m.defaults
	}
	prior := m.state(ctx)

	now := m.now()
	decision := m.controller.Decide(ctx, price, now, settings, prior)
	report.Decision = decision

	deliver := func(a controller.Action) bool {
		res := m.notifier.Deliver(ctx, settings.Recipients.For(a.Channel), a.Title, a.Body)
		ar := ActionResult{
			Kind:      a.Kind,
			Attempted: res.Attempted,
			Delivered: res.Delivered,
		}
		for _, err := range res.Errors {
			ar.Errors = append(ar.Errors, err.Error())
		}
		report.Results = append(report.Results, ar)
		if !res.OK() {
			log.Ctx(ctx).WarnContext(ctx, "action not delivered", slog.String("kind", string(a.Kind)), slog.Any("error", res.Err()))
		}
		return res.OK()
	}

	// status delivery never affects the outcome
	deliver(decision.Status)

	alertDelivered := false
	if decision.Alert != nil {
		alertDelivered = deliver(*decision.Alert)
		if alertDelivered {
			log.Ctx(ctx).InfoContext(ctx, "sent alert", slog.Float64("cents", price.CentsPerKWH))
		}
	} else {
		log.Ctx(ctx).InfoContext(ctx, "skipped alert", slog.String("reason", string(decision.AlertSkip)))
	}

	if decision.Charge != nil {
		if deliver(*decision.Charge) {
			log.Ctx(ctx).InfoContext(ctx, "sent charge signal", slog.String("title", decision.Charge.Title))
		}
	}

	next := decision.Resolve(alertDelivered)
	report.State = next
	if err := m.storage.SetState(ctx, next); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save state", slog.Any("error", err))
	} else {
		report.StateSaved = true
	}
	return report, nil
}

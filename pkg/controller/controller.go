package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/types"
)

const (
	// TitleStatus is the title of the per-run status message.
	TitleStatus = "Monitor"
	// TitleAlert is the title of low price alerts.
	TitleAlert = "ComEd Alert"
	// TitleStartCharge and TitleStopCharge are matched verbatim by downstream
	// automations. Do not change them.
	TitleStartCharge = "START_CHARGE"
	TitleStopCharge  = "STOP_CHARGE"
)

// ActionKind identifies what a notification action is for.
type ActionKind string

const (
	ActionStatus      ActionKind = "status"
	ActionAlert       ActionKind = "alert"
	ActionStartCharge ActionKind = "startCharge"
	ActionStopCharge  ActionKind = "stopCharge"
)

// Action is a notification to deliver to every destination of Channel.
type Action struct {
	Kind    ActionKind    `json:"kind"`
	Channel types.Channel `json:"channel"`
	Title   string        `json:"title"`
	Body    string        `json:"body"`
}

// SkipReason explains why no alert was sent. Only the first blocking reason
// is reported, checked in the order declared here.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipQuietHours     SkipReason = "quiet_hours"
	SkipAboveThreshold SkipReason = "above_threshold"
	SkipCooldown       SkipReason = "cooldown"
)

// Decision represents the result of the decision logic.
type Decision struct {
	Now               time.Time     `json:"now"`
	PriceCents        float64       `json:"priceCents"`
	Quiet             bool          `json:"quiet"`
	CooldownRemaining time.Duration `json:"cooldownRemaining"`
	BelowAlert        bool          `json:"belowAlert"`
	BelowCharge       bool          `json:"belowCharge"`

	Status    Action     `json:"status"`
	Alert     *Action    `json:"alert,omitempty"`
	AlertSkip SkipReason `json:"alertSkip,omitempty"`
	// Charge is a START_CHARGE or STOP_CHARGE action, only on a transition.
	Charge *Action `json:"charge,omitempty"`

	// Next is the state to persist if the alert (if any) was not delivered.
	// Use Resolve to get the state to actually persist.
	Next types.State `json:"next"`
}

// Actions returns the actions in delivery order.
func (d Decision) Actions() []Action {
	actions := []Action{d.Status}
	if d.Alert != nil {
		actions = append(actions, *d.Alert)
	}
	if d.Charge != nil {
		actions = append(actions, *d.Charge)
	}
	return actions
}

// Resolve returns the state to persist. The cooldown only starts when the
// alert was actually delivered, so a failed alert is retried next run.
func (d Decision) Resolve(alertDelivered bool) types.State {
	next := d.Next
	if d.Alert != nil && alertDelivered {
		next.LastNotificationTime = d.Now
	}
	return next
}

// Controller handles the decision-making logic for price notifications.
type Controller struct {
}

// NewController creates a new Controller.
func NewController() *Controller {
	return &Controller{}
}

// Decide determines which notifications to send for price at now given the
// prior state. It has no side effects besides logging.
func (c *Controller) Decide(
	ctx context.Context,
	price types.Price,
	now time.Time,
	settings types.Settings,
	prior types.State,
) Decision {
	p := price.CentsPerKWH

	quiet, err := settings.QuietHours.Contains(now)
	if err != nil {
		// Validate rejects unknown locations so this only happens when the
		// tz database is missing on the host.
		log.Ctx(ctx).WarnContext(ctx, "failed to evaluate quiet hours, using local time", slog.Any("error", err))
		local := settings.QuietHours
		local.Location = ""
		local.LocationPtr = time.Local
		quiet, _ = local.Contains(now)
	}

	var cooldownRemaining time.Duration
	if !prior.LastNotificationTime.IsZero() {
		cooldownRemaining = max(0, settings.Cooldown()-now.Sub(prior.LastNotificationTime))
	}
	cooldownOK := cooldownRemaining == 0

	belowAlert := p < settings.AlertThresholdCents
	// inclusive on purpose, unlike belowAlert
	belowCharge := p <= settings.ChargeThresholdCents

	log.Ctx(ctx).DebugContext(
		ctx,
		"controller decide started",
		slog.Float64("price", p),
		slog.Bool("quiet", quiet),
		slog.Duration("cooldownRemaining", cooldownRemaining),
		slog.Bool("belowAlert", belowAlert),
		slog.Bool("belowCharge", belowCharge),
		slog.Bool("chargingRecommended", prior.ChargingRecommended),
	)

	d := Decision{
		Now:               now,
		PriceCents:        p,
		Quiet:             quiet,
		CooldownRemaining: cooldownRemaining,
		BelowAlert:        belowAlert,
		BelowCharge:       belowCharge,
		Status: Action{
			Kind:    ActionStatus,
			Channel: types.ChannelTest,
			Title:   TitleStatus,
			Body:    statusLine(p, quiet, cooldownRemaining, prior.ChargingRecommended, settings),
		},
	}

	// Alert
	switch {
	case quiet:
		d.AlertSkip = SkipQuietHours
	case !belowAlert:
		d.AlertSkip = SkipAboveThreshold
	case !cooldownOK:
		d.AlertSkip = SkipCooldown
	default:
		var body string
		if belowCharge {
			body = fmt.Sprintf(
				"GREAT PRICE: %sc/kWh!\nIdeal for charging (at or under %sc)",
				types.FormatCents(p),
				types.FormatCents(settings.ChargeThresholdCents),
			)
		} else {
			body = fmt.Sprintf(
				"Low price: %sc/kWh\nBelow %sc threshold",
				types.FormatCents(p),
				types.FormatCents(settings.AlertThresholdCents),
			)
		}
		d.Alert = &Action{
			Kind:    ActionAlert,
			Channel: types.ChannelProd,
			Title:   TitleAlert,
			Body:    body,
		}
	}

	// Charge transitions are edge-triggered. During quiet hours nothing is
	// evaluated and the flag carries over unchanged.
	next := prior
	next.LastDetectedPriceCents = p
	next.LastPriceTime = now
	switch {
	case quiet:
	case belowCharge && !prior.ChargingRecommended:
		d.Charge = &Action{
			Kind:    ActionStartCharge,
			Channel: types.ChannelCharge,
			Title:   TitleStartCharge,
			Body: fmt.Sprintf(
				"Price %sc/kWh is at or below %sc. Start charging.",
				types.FormatCents(p),
				types.FormatCents(settings.ChargeThresholdCents),
			),
		}
		next.ChargingRecommended = true
	case !belowCharge && prior.ChargingRecommended:
		d.Charge = &Action{
			Kind:    ActionStopCharge,
			Channel: types.ChannelCharge,
			Title:   TitleStopCharge,
			Body: fmt.Sprintf(
				"Price %sc/kWh is above %sc. Stop charging.",
				types.FormatCents(p),
				types.FormatCents(settings.ChargeThresholdCents),
			),
		}
		next.ChargingRecommended = false
	}
	d.Next = next

	return d
}

// statusLine is the single line sent to the test channel on every run, e.g.
// "1.5c [CD:12m CHARGING] Alert<4c Charge<=2c".
func statusLine(p float64, quiet bool, cooldownRemaining time.Duration, charging bool, settings types.Settings) string {
	var flags []string
	if quiet {
		flags = append(flags, "QUIET")
	}
	if cooldownRemaining > 0 {
		flags = append(flags, fmt.Sprintf("CD:%.0fm", cooldownRemaining.Minutes()))
	}
	if charging {
		flags = append(flags, "CHARGING")
	}
	status := "OK"
	if len(flags) > 0 {
		status = strings.Join(flags, " ")
	}
	return fmt.Sprintf(
		"%sc [%s] Alert<%sc Charge<=%sc",
		types.FormatCents(p),
		status,
		types.FormatCents(settings.AlertThresholdCents),
		types.FormatCents(settings.ChargeThresholdCents),
	)
}

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raterudder/pricewatch/pkg/types"
)

// options holds the raw settings edits from the command line. Empty fields
// are left alone.
type options struct {
	AlertThreshold  string
	ChargeThreshold string
	Cooldown        string
	QuietHours      string
	QuietLocation   string
	Add             string
	Remove          string
}

func (o options) patch() (types.SettingsPatch, error) {
	var p types.SettingsPatch
	if o.AlertThreshold != "" {
		v, err := strconv.ParseFloat(o.AlertThreshold, 64)
		if err != nil {
			return p, fmt.Errorf("invalid set-alert-threshold %q: %w", o.AlertThreshold, err)
		}
		p.AlertThresholdCents = &v
	}
	if o.ChargeThreshold != "" {
		v, err := strconv.ParseFloat(o.ChargeThreshold, 64)
		if err != nil {
			return p, fmt.Errorf("invalid set-charge-threshold %q: %w", o.ChargeThreshold, err)
		}
		p.ChargeThresholdCents = &v
	}
	if o.Cooldown != "" {
		d, err := time.ParseDuration(o.Cooldown)
		if err != nil {
			return p, fmt.Errorf("invalid set-cooldown %q: %w", o.Cooldown, err)
		}
		v := d.Minutes()
		p.CooldownMinutes = &v
	}
	if o.QuietHours != "" || o.QuietLocation != "" {
		if o.QuietHours == "" {
			return p, fmt.Errorf("set-quiet-location requires set-quiet-hours")
		}
		start, end, ok := strings.Cut(o.QuietHours, "-")
		if !ok {
			return p, fmt.Errorf("invalid set-quiet-hours %q: expected start-end", o.QuietHours)
		}
		q := types.QuietHours{Location: o.QuietLocation}
		var err error
		if q.StartHour, err = strconv.Atoi(strings.TrimSpace(start)); err != nil {
			return p, fmt.Errorf("invalid set-quiet-hours start %q: %w", start, err)
		}
		if q.EndHour, err = strconv.Atoi(strings.TrimSpace(end)); err != nil {
			return p, fmt.Errorf("invalid set-quiet-hours end %q: %w", end, err)
		}
		p.QuietHours = &q
	}

	var err error
	if p.AddRecipients, err = parseRecipients(o.Add); err != nil {
		return p, fmt.Errorf("invalid add-recipient: %w", err)
	}
	if p.RemoveRecipients, err = parseRecipients(o.Remove); err != nil {
		return p, fmt.Errorf("invalid remove-recipient: %w", err)
	}
	return p, nil
}

func parseRecipients(s string) ([]types.RecipientChange, error) {
	var l []types.RecipientChange
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		rc, err := types.ParseRecipientChange(part)
		if err != nil {
			return nil, err
		}
		l = append(l, rc)
	}
	return l, nil
}

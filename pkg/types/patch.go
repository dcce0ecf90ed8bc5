package types

import (
	"errors"
	"fmt"
	"strings"
)

// RecipientChange names one destination of one channel.
type RecipientChange struct {
	Channel     Channel `json:"channel"`
	Destination string  `json:"destination"`
}

// ParseRecipientChange parses "channel=destination".
func ParseRecipientChange(s string) (RecipientChange, error) {
	ch, dest, ok := strings.Cut(s, "=")
	if !ok {
		return RecipientChange{}, fmt.Errorf("invalid recipient %q: expected channel=destination", s)
	}
	c, err := ParseChannel(strings.TrimSpace(ch))
	if err != nil {
		return RecipientChange{}, err
	}
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return RecipientChange{}, fmt.Errorf("invalid recipient %q: empty destination", s)
	}
	return RecipientChange{Channel: c, Destination: dest}, nil
}

// SettingsPatch is a partial edit of Settings. Nil fields are left alone.
type SettingsPatch struct {
	AlertThresholdCents  *float64          `json:"alertThresholdCents,omitempty"`
	ChargeThresholdCents *float64          `json:"chargeThresholdCents,omitempty"`
	CooldownMinutes      *float64          `json:"cooldownMinutes,omitempty"`
	QuietHours           *QuietHours       `json:"quietHours,omitempty"`
	AddRecipients        []RecipientChange `json:"addRecipients,omitempty"`
	RemoveRecipients     []RecipientChange `json:"removeRecipients,omitempty"`
}

// Empty returns true if the patch would not touch anything.
func (p SettingsPatch) Empty() bool {
	return p.AlertThresholdCents == nil &&
		p.ChargeThresholdCents == nil &&
		p.CooldownMinutes == nil &&
		p.QuietHours == nil &&
		len(p.AddRecipients) == 0 &&
		len(p.RemoveRecipients) == 0
}

// Apply edits s in place. Removing a destination that is not present is an
// error so typos don't go unnoticed. Removals are applied before additions.
func (p SettingsPatch) Apply(s *Settings) error {
	if p.AlertThresholdCents != nil {
		s.AlertThresholdCents = *p.AlertThresholdCents
	}
	if p.ChargeThresholdCents != nil {
		s.ChargeThresholdCents = *p.ChargeThresholdCents
	}
	if p.CooldownMinutes != nil {
		s.CooldownMinutes = *p.CooldownMinutes
	}
	if p.QuietHours != nil {
		loc := s.QuietHours.Location
		s.QuietHours = *p.QuietHours
		s.QuietHours.LocationPtr = nil
		// an empty location means keep the current timezone, not host local
		if s.QuietHours.Location == "" {
			s.QuietHours.Location = loc
		}
	}

	var errs []error
	for _, r := range p.RemoveRecipients {
		c, err := ParseChannel(string(r.Channel))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !s.Recipients.Remove(c, r.Destination) {
			errs = append(errs, fmt.Errorf("recipients.%s: %s not found", c, r.Destination))
		}
	}
	for _, r := range p.AddRecipients {
		c, err := ParseChannel(string(r.Channel))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Recipients.Add(c, strings.TrimSpace(r.Destination))
	}
	return errors.Join(errs...)
}

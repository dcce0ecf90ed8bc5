package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/common"
	"github.com/raterudder/pricewatch/pkg/controller"
)

// Default events fired for START_CHARGE and STOP_CHARGE.
const (
	DefaultIFTTTStartEvent = "start_tesla_charge"
	DefaultIFTTTStopEvent  = "stop_tesla_charge"
)

// IFTTT triggers Maker webhook events, which is how charge recommendations
// reach home automation.
//
// START_CHARGE and STOP_CHARGE fire the configured start and stop events. A
// target of the form "start/stop" overrides both for that destination. Any
// other message fires the event named by the target, which must then be a
// single event.
type IFTTT struct {
	baseURL    string
	key        string
	startEvent string
	stopEvent  string
	client     *http.Client
}

// NewIFTTT returns an IFTTT using the given webhook key and the default
// charge events.
func NewIFTTT(baseURL, key string) *IFTTT {
	return &IFTTT{
		baseURL:    strings.TrimRight(baseURL, "/"),
		key:        key,
		startEvent: DefaultIFTTTStartEvent,
		stopEvent:  DefaultIFTTTStopEvent,
		client:     common.HTTPClient(0),
	}
}

// SetChargeEvents sets the events fired for START_CHARGE and STOP_CHARGE.
func (i *IFTTT) SetChargeEvents(start, stop string) {
	i.startEvent = start
	i.stopEvent = stop
}

func configuredIFTTT() *IFTTT {
	i := NewIFTTT("", "")
	baseURL := lflag.String("ifttt-url", "https://maker.ifttt.com", "Base URL of the IFTTT Maker webhooks service")
	key := lflag.String("ifttt-webhook-key", "", "IFTTT webhook key (defaults to $IFTTT_WEBHOOK_KEY)")
	startEvent := lflag.String("ifttt-start-event", "", "IFTTT event fired for START_CHARGE (defaults to $IFTTT_START_CHARGE_EVENT or "+DefaultIFTTTStartEvent+")")
	stopEvent := lflag.String("ifttt-stop-event", "", "IFTTT event fired for STOP_CHARGE (defaults to $IFTTT_STOP_CHARGE_EVENT or "+DefaultIFTTTStopEvent+")")

	lflag.Do(func() {
		i.baseURL = strings.TrimRight(*baseURL, "/")
		i.key = *key
		if i.key == "" {
			i.key = os.Getenv("IFTTT_WEBHOOK_KEY")
		}
		i.SetChargeEvents(
			firstNonEmpty(*startEvent, os.Getenv("IFTTT_START_CHARGE_EVENT"), DefaultIFTTTStartEvent),
			firstNonEmpty(*stopEvent, os.Getenv("IFTTT_STOP_CHARGE_EVENT"), DefaultIFTTTStopEvent),
		)
		if i.startEvent == i.stopEvent {
			panic("ifttt-start-event and ifttt-stop-event must differ")
		}
	})
	return i
}

func firstNonEmpty(l ...string) string {
	for _, s := range l {
		if s != "" {
			return s
		}
	}
	return ""
}

// event picks the webhook event for a message to target.
func (i *IFTTT) event(target, title string) (string, error) {
	start, stop, pair := strings.Cut(target, "/")
	if !pair {
		start, stop = i.startEvent, i.stopEvent
	} else if start == "" || stop == "" {
		return "", fmt.Errorf("invalid ifttt target %q: expected start/stop", target)
	}
	switch title {
	case controller.TitleStartCharge:
		return start, nil
	case controller.TitleStopCharge:
		return stop, nil
	}
	if pair {
		return "", fmt.Errorf("ifttt target %q only accepts charge signals", target)
	}
	if target == "" {
		return "", errors.New("ifttt target is empty")
	}
	return target, nil
}

// Enabled returns true if a webhook key is configured.
func (i *IFTTT) Enabled() bool {
	return i.key != ""
}

// Send triggers the event for title, passing the title and body as value1 and
// value2.
func (i *IFTTT) Send(ctx context.Context, target, title, body string) error {
	event, err := i.event(target, title)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{
		"value1": title,
		"value2": body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal ifttt payload: %w", err)
	}

	u := fmt.Sprintf("%s/trigger/%s/with/key/%s", i.baseURL, url.PathEscape(event), url.PathEscape(i.key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create ifttt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		// the url carries the key so don't let it end up in logs
		return fmt.Errorf("failed to trigger ifttt event %s: %w", event, redactURLError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ifttt returned status %d for event %s: %s", resp.StatusCode, event, strings.TrimSpace(string(raw)))
	}
	return nil
}

func redactURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}

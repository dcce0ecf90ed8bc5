package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/log"
)

// Destination schemes.
const (
	SchemeNtfy     = "ntfy"
	SchemeMailto   = "mailto"
	SchemeIFTTT    = "ifttt"
	SchemeTelegram = "telegram"
)

// ErrNoTransport is returned for a destination whose scheme has no
// configured Sender.
var ErrNoTransport = errors.New("no transport configured")

// Sender delivers one message to one target of its transport. The target is
// the destination with the "scheme:" prefix removed.
type Sender interface {
	Send(ctx context.Context, target, title, body string) error
}

// Notifier routes destinations to Senders by scheme.
type Notifier struct {
	senders map[string]Sender
	timeout time.Duration
}

// NewNotifier returns a Notifier with no transports. Each destination is
// bounded by timeout; zero means no limit beyond the caller's context.
func NewNotifier(timeout time.Duration) *Notifier {
	return &Notifier{
		senders: map[string]Sender{},
		timeout: timeout,
	}
}

// Configured sets up a Notifier with every transport that has been
// configured through flags.
func Configured() *Notifier {
	timeout := lflag.Duration("notify-timeout", 10*time.Second, "Maximum time to spend delivering to a single destination")

	n := NewNotifier(0)
	ntfy := configuredNtfy()
	email := configuredEmail()
	ifttt := configuredIFTTT()
	telegram := configuredTelegram()

	lflag.Do(func() {
		if *timeout <= 0 {
			panic("notify-timeout must be positive")
		}
		n.timeout = *timeout

		n.SetSender(SchemeNtfy, ntfy)
		if email.Enabled() {
			if err := email.Validate(); err != nil {
				panic(fmt.Sprintf("email validation failed: %v", err))
			}
			n.SetSender(SchemeMailto, email)
		}
		if ifttt.Enabled() {
			n.SetSender(SchemeIFTTT, ifttt)
		}
		if telegram.Enabled() {
			n.SetSender(SchemeTelegram, telegram)
		}
	})
	return n
}

// SetSender registers s for destinations starting with "scheme:".
func (n *Notifier) SetSender(scheme string, s Sender) {
	n.senders[scheme] = s
}

// ParseDestination splits "scheme:target".
func ParseDestination(dest string) (string, string, error) {
	scheme, target, ok := strings.Cut(dest, ":")
	if !ok || scheme == "" || target == "" {
		return "", "", fmt.Errorf("invalid destination %q: expected scheme:target", dest)
	}
	return strings.ToLower(scheme), target, nil
}

// Result describes the outcome of delivering one message to a list of
// destinations.
type Result struct {
	Attempted int
	Delivered int
	// Errors has one entry per failed destination in recipient order.
	Errors []error
}

// OK reports whether the message counts as delivered: there was nothing to
// deliver, or at least one destination accepted it.
func (r Result) OK() bool {
	return r.Attempted == 0 || r.Delivered > 0
}

// Err joins the per-destination errors.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// Deliver sends the message to every destination concurrently. Each
// destination gets a single attempt bounded by the notify timeout, and a
// failure for one destination never affects the others.
func (n *Notifier) Deliver(ctx context.Context, recipients []string, title, body string) Result {
	errs := make([]error, len(recipients))

	var wg sync.WaitGroup
	for i, dest := range recipients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = n.send(ctx, dest, title, body)
		}()
	}
	wg.Wait()

	res := Result{Attempted: len(recipients)}
	for i, err := range errs {
		if err == nil {
			res.Delivered++
			continue
		}
		log.Ctx(ctx).WarnContext(
			ctx,
			"failed to deliver notification",
			slog.String("destination", recipients[i]),
			slog.String("title", title),
			slog.Any("error", err),
		)
		res.Errors = append(res.Errors, err)
	}
	return res
}

func (n *Notifier) send(ctx context.Context, dest, title, body string) error {
	scheme, target, err := ParseDestination(dest)
	if err != nil {
		return err
	}
	s, ok := n.senders[scheme]
	if !ok {
		return fmt.Errorf("%s: %w for scheme %s", dest, ErrNoTransport, scheme)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := s.Send(ctx, target, title, body); err != nil {
		return fmt.Errorf("%s: %w", dest, err)
	}
	return nil
}

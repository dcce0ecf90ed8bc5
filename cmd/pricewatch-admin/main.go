package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/monitor"
	"github.com/raterudder/pricewatch/pkg/notify"
	"github.com/raterudder/pricewatch/pkg/storage"
	"github.com/raterudder/pricewatch/pkg/types"
	"github.com/raterudder/pricewatch/pkg/utility"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	u := utility.Configured()
	s := storage.Configured()
	n := notify.Configured()
	m := monitor.Configured(u, s, n)

	show := lflag.Bool("show", false, "Print the current settings and state")
	alert := lflag.String("set-alert-threshold", "", "New alert threshold in cents/kWh")
	charge := lflag.String("set-charge-threshold", "", "New charge threshold in cents/kWh")
	cooldown := lflag.String("set-cooldown", "", "New cooldown between alerts, like 45m")
	quiet := lflag.String("set-quiet-hours", "", "New quiet hours as start-end in 24h local hours, like 22-6")
	quietLocation := lflag.String("set-quiet-location", "", "New IANA timezone for quiet hours")
	add := lflag.String("add-recipient", "", "Comma-delimited channel=destination pairs to add, like prod=ntfy:topic")
	remove := lflag.String("remove-recipient", "", "Comma-delimited channel=destination pairs to remove")
	updatedBy := lflag.String("updated-by", defaultUpdatedBy(), "Who is recorded in the config history")
	sendTest := lflag.String("send-test", "", "Send a test message to every destination of this channel (test, prod or charge)")
	price := lflag.String("price", "", "Price shown in the test message; the current price when empty")

	lflag.Configure()
	log.Configure()

	opts := options{
		AlertThreshold:  *alert,
		ChargeThreshold: *charge,
		Cooldown:        *cooldown,
		QuietHours:      *quiet,
		QuietLocation:   *quietLocation,
		Add:             *add,
		Remove:          *remove,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Stdout, m, opts, *updatedBy, *sendTest, *price, *show)
	if cerr := s.Close(); cerr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", cerr))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func defaultUpdatedBy() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func run(ctx context.Context, out io.Writer, m *monitor.Monitor, opts options, updatedBy, sendTest, price string, show bool) error {
	patch, err := opts.patch()
	if err != nil {
		return err
	}

	if !patch.Empty() {
		changes, err := m.UpdateSettings(ctx, updatedBy, func(s *types.Settings) error {
			if err := patch.Apply(s); err != nil {
				return err
			}
			return s.Validate()
		})
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Fprintln(out, "no changes")
		}
		for _, c := range changes {
			fmt.Fprintln(out, c)
		}
	}

	if sendTest != "" {
		channel, err := types.ParseChannel(sendTest)
		if err != nil {
			return err
		}
		res, err := m.SendTest(ctx, channel, price)
		fmt.Fprintf(out, "test message delivered to %d of %d destinations\n", res.Delivered, res.Attempted)
		if err != nil {
			return err
		}
	}

	if show || (patch.Empty() && sendTest == "") {
		state, settings, err := m.Status(ctx)
		if err != nil {
			return err
		}
		// defaults are what --alert-threshold etc. seed a fresh store with
		b, err := json.MarshalIndent(struct {
			Settings types.Settings `json:"settings"`
			Defaults types.Settings `json:"defaults"`
			State    types.State    `json:"state"`
		}{settings, m.Defaults(), state}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
	}
	return nil
}

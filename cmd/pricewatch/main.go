package main

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/raterudder/pricewatch/pkg/server"
	"github.com/raterudder/pricewatch/pkg/storage"
	"github.com/raterudder/pricewatch/pkg/utility"
)

func main() {
	// credentials like GMAIL_APP_PASSWORD may come from a local .env file
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	// init packages
	u := utility.Configured()
	s := storage.Configured()
	n := notify.Configured()
	m := monitor.Configured(u, s, n)

	// init server
	srv := server.Configured(m)

	mode := lflag.String("mode", "once", "once runs a single invocation, loop repeats it every interval, serve runs the HTTP API")
	interval := lflag.Duration("interval", monitor.DefaultInterval, "Time between invocations in loop mode, and in serve mode when positive")

	// parse flags
	lflag.Configure()
	log.Configure()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	if err := run(ctx, m, srv, *mode, *interval); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "pricewatch failed", slog.String("mode", *mode), slog.Any("error", err))
		cancel()
		s.Close()
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "pricewatch exited cleanly", slog.String("mode", *mode))
}

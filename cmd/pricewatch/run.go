package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/monitor"
	"github.com/raterudder/pricewatch/pkg/server"
)

func run(ctx context.Context, m *monitor.Monitor, srv *server.Server, mode string, interval time.Duration) error {
	switch mode {
	case "once":
		report, err := m.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Ctx(ctx).InfoContext(ctx, "invocation finished",
			slog.String("runID", report.RunID),
			slog.Float64("cents", report.Price.CentsPerKWH),
			slog.Bool("stateSaved", report.StateSaved),
		)
		return nil
	case "loop":
		return m.Loop(ctx, interval)
	case "serve":
		if interval <= 0 {
			return srv.Run(ctx)
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		loopErr := make(chan error, 1)
		go func() {
			loopErr <- m.Loop(ctx, interval)
		}()
		err := srv.Run(ctx)
		cancel()
		if lerr := <-loopErr; err == nil {
			err = lerr
		}
		return err
	default:
		return fmt.Errorf("unknown mode: %q", mode)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/app"
	"github.com/bighogz/insider-trades/internal/checkpoint"
	"github.com/bighogz/insider-trades/internal/config"
	"github.com/bighogz/insider-trades/internal/ingest"
	"github.com/bighogz/insider-trades/internal/metrics"
	"github.com/bighogz/insider-trades/internal/store"
	"github.com/bighogz/insider-trades/internal/telemetry"
)

func main() {
	fromStr := flag.String("from", "", "First filing day YYYY-MM-DD (default: checkpoint)")
	toStr := flag.String("to", "", "Last filing day YYYY-MM-DD (default: -from)")
	retry := flag.Bool("retry-errors", false, "Retry stored error URLs instead of ingesting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config: %v\n", err)
		os.Exit(1)
	}
	log, err := app.Logger(cfg, "ingest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *fromStr, *toStr, *retry); err != nil {
		log.Error("ingest failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, fromStr, toStr string, retry bool) error {
	shutdown, err := telemetry.Init(cfg.Telemetry.Traces, os.Stderr)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdown(context.Background())
	metrics.Init()
	defer func() {
		if err := metrics.WriteTextfile(cfg.Paths.MetricsFile); err != nil {
			log.Warn("failed to write metrics textfile", zap.Error(err))
		}
	}()

	st, err := store.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer st.Close()
	runner := app.IngestRunner(cfg, st, log)

	if retry {
		_, err := runner.RetryErrors(ctx)
		return err
	}

	start, end, fromCheckpoint, err := window(cfg.Paths.Checkpoint, fromStr, toStr)
	if err != nil {
		return err
	}
	if _, err := runner.Run(ctx, start, end); err != nil {
		var qe *ingest.UpstreamQueryError
		if errors.As(err, &qe) {
			log.Error("index query failed; checkpoint not advanced", zap.String("start", qe.Start), zap.String("end", qe.End))
		}
		return err
	}
	if fromCheckpoint {
		if err := checkpoint.Advance(cfg.Paths.Checkpoint, end); err != nil {
			return fmt.Errorf("advance checkpoint: %w", err)
		}
		log.Info("checkpoint advanced", zap.String("next", end.AddDate(0, 0, 1).Format(ingest.DateLayout)))
	}
	return nil
}

// window resolves the day range. Without -from the checkpoint day is used
// and it is advanced after a successful run.
func window(path, fromStr, toStr string) (start, end time.Time, fromCheckpoint bool, err error) {
	if fromStr == "" {
		s, err := checkpoint.Read(path)
		if err != nil {
			return start, end, false, fmt.Errorf("no -from given and %w", err)
		}
		day, err := s.Day()
		if err != nil {
			return start, end, false, fmt.Errorf("checkpoint %s: %w", path, err)
		}
		return day, day, true, nil
	}
	start, err = time.Parse(ingest.DateLayout, fromStr)
	if err != nil {
		return start, end, false, fmt.Errorf("invalid -from date: %w", err)
	}
	end = start
	if toStr != "" {
		if end, err = time.Parse(ingest.DateLayout, toStr); err != nil {
			return start, end, false, fmt.Errorf("invalid -to date: %w", err)
		}
	}
	if end.Before(start) {
		return start, end, false, fmt.Errorf("-to %s is before -from %s", toStr, fromStr)
	}
	return start, end, false, nil
}

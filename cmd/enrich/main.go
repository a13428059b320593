package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/app"
	"github.com/bighogz/insider-trades/internal/config"
	"github.com/bighogz/insider-trades/internal/metrics"
	"github.com/bighogz/insider-trades/internal/store"
	"github.com/bighogz/insider-trades/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config: %v\n", err)
		os.Exit(1)
	}
	log, err := app.Logger(cfg, "enrich")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("enrich failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
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

	if cfg.Intrinio.APIKey == "" {
		log.Warn("no Intrinio key configured; pricing from Yahoo only")
	}
	_, err = app.EnrichJob(cfg, st, log).Run(ctx)
	return err
}

// Package app wires configured components for the cmd entry points.
package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/aggregator"
	"github.com/bighogz/insider-trades/internal/config"
	"github.com/bighogz/insider-trades/internal/enrich"
	"github.com/bighogz/insider-trades/internal/form4"
	"github.com/bighogz/insider-trades/internal/httpclient"
	"github.com/bighogz/insider-trades/internal/ingest"
	"github.com/bighogz/insider-trades/internal/logger"
	"github.com/bighogz/insider-trades/internal/notify"
	"github.com/bighogz/insider-trades/internal/prices"
	"github.com/bighogz/insider-trades/internal/secapi"
	"github.com/bighogz/insider-trades/internal/store"
)

// PriceCacheTTL bounds how long a ticker's history is reused within a process.
const PriceCacheTTL = 30 * time.Minute

// Logger builds the job logger. With SaveLogs set, info and above are also
// written under Paths.LogDir/<job>/.
func Logger(cfg *config.Config, job string) (*zap.Logger, error) {
	dir := ""
	if cfg.Logging.SaveLogs {
		dir = cfg.Paths.LogDir
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath, dir, job)
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("job", job)), nil
}

// IngestRunner builds the index query, document fetch, parser, supervisor
// and notifier around st.
func IngestRunner(cfg *config.Config, st *store.SQLStore, log *zap.Logger) *ingest.Runner {
	index := secapi.NewQueryClient(cfg.SEC.QueryAPIKey, cfg.SEC.QueryURL, cfg.SEC.PageSize, httpclient.Default, log)
	edgar := secapi.NewEdgarClient(cfg.SEC.UserAgent, cfg.SEC.RatePerSec, httpclient.Default)
	sup := ingest.NewSupervisor(edgar, form4.NewParser(log), st, log)
	return ingest.NewRunner(index, sup, st, notify.NewMailer(cfg.Mail, log), log)
}

// PriceSource tries Intrinio, then FMP (each only when keyed), then Yahoo,
// behind an in-memory cache.
func PriceSource(cfg *config.Config, log *zap.Logger) prices.Source {
	var sources []prices.Source
	if cfg.Intrinio.APIKey != "" {
		sources = append(sources, prices.NewIntrinio(cfg.Intrinio.APIKey, cfg.Intrinio.BaseURL, cfg.Intrinio.PageSize, httpclient.Default, log))
	}
	if cfg.FMP.APIKey != "" {
		sources = append(sources, prices.NewFMP(cfg.FMP.APIKey, cfg.FMP.BaseURL, httpclient.Default))
	}
	sources = append(sources, prices.NewYahoo())
	return prices.NewCached(prices.NewChain(log, sources...), PriceCacheTTL)
}

func EnrichJob(cfg *config.Config, st *store.SQLStore, log *zap.Logger) *enrich.Job {
	return enrich.NewJob(st, PriceSource(cfg, log), aggregator.New(st, log), log)
}

// Ensure the concrete store satisfies every consumer.
var (
	_ store.Store  = (*store.SQLStore)(nil)
	_ ingest.Store = (*store.SQLStore)(nil)
	_ enrich.Store = (*store.SQLStore)(nil)
)

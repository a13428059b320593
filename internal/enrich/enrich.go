package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/aggregator"
	"github.com/bighogz/insider-trades/internal/metrics"
	"github.com/bighogz/insider-trades/internal/models"
	"github.com/bighogz/insider-trades/internal/prices"
	"github.com/bighogz/insider-trades/internal/telemetry"
)

const (
	// HoldDays is how long after filing the outcome price is read.
	HoldDays = 90
	// fetchDays covers HoldDays plus weekends and holidays. A filing whose
	// history still lacks the outcome bar this long after filing is priced
	// with what exists.
	fetchDays = 100
)

type Store interface {
	FilingsEligibleForPricing(ctx context.Context, before time.Time) ([]models.PricingCandidate, error)
	InsertPrices(ctx context.Context, filingID string, p models.StockPrices) (int64, error)
	SetFilingPrices(ctx context.Context, filingID string, pricesID int64) error
}

type Report struct {
	Candidates int `json:"candidates"`
	Priced     int `json:"priced"`
	Aggregated int `json:"aggregated"`
	NoPrices   int `json:"no_prices"`
	Pending    int `json:"pending"`
	Failed     int `json:"failed"`
}

// Job prices filings old enough to have a 90-day outcome and feeds each
// outcome to the aggregator.
type Job struct {
	store Store
	src   prices.Source
	agg   *aggregator.Aggregator
	now   func() time.Time
	log   *zap.Logger
}

func NewJob(st Store, src prices.Source, agg *aggregator.Aggregator, log *zap.Logger) *Job {
	if log == nil {
		log = zap.NewNop()
	}
	return &Job{store: st, src: src, agg: agg, now: time.Now, log: log}
}

// Outcome picks the filing-day open and the close HoldDays later from a
// history that starts on the filing day.
func Outcome(obs []models.PriceObservation, filed time.Time) models.StockPrices {
	day := time.Date(filed.Year(), filed.Month(), filed.Day(), 0, 0, 0, 0, time.UTC)
	return models.StockPrices{
		Open:      prices.FirstOpenOnOrAfter(obs, day),
		NinetyDay: prices.FirstCloseOnOrAfter(obs, day.AddDate(0, 0, HoldDays)),
	}
}

func (j *Job) Run(ctx context.Context) (*Report, error) {
	began := time.Now()
	defer func() { metrics.RunDuration.WithLabelValues("enrich").Observe(time.Since(began).Seconds()) }()

	cutoff := j.now().AddDate(0, 0, -HoldDays)
	cands, err := j.store.FilingsEligibleForPricing(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	rep := &Report{Candidates: len(cands)}
	j.log.Info("enrich started", zap.Int("candidates", len(cands)), zap.Time("cutoff", cutoff))
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		j.one(ctx, c, rep)
	}
	j.log.Info("enrich finished",
		zap.Int("priced", rep.Priced),
		zap.Int("aggregated", rep.Aggregated),
		zap.Int("no_prices", rep.NoPrices),
		zap.Int("pending", rep.Pending),
		zap.Int("failed", rep.Failed))
	return rep, nil
}

func (j *Job) one(ctx context.Context, c models.PricingCandidate, rep *Report) {
	var err error
	ctx, span := telemetry.Start(ctx, "enrich.filing", "filing_id", c.FilingID, "ticker", c.Ticker)
	defer func() { telemetry.End(span, err) }()
	log := j.log.With(zap.String("filing_id", c.FilingID), zap.String("ticker", c.Ticker))

	day := time.Date(c.FilingDate.Year(), c.FilingDate.Month(), c.FilingDate.Day(), 0, 0, 0, 0, time.UTC)
	obs, err := j.src.History(ctx, c.Ticker, day, day.AddDate(0, 0, fetchDays))
	if err != nil {
		rep.Failed++
		log.Warn("price history unavailable", zap.Error(err))
		return
	}
	outcomeDay := day.AddDate(0, 0, HoldDays)
	if !hasBarOnOrAfter(obs, outcomeDay) && j.now().Before(day.AddDate(0, 0, fetchDays)) {
		rep.Pending++
		log.Info("outcome bar not published yet; filing left unpriced", zap.Time("outcome_day", outcomeDay))
		return
	}
	sp := Outcome(obs, c.FilingDate)

	id, err := j.store.InsertPrices(ctx, c.FilingID, sp)
	if err != nil {
		rep.Failed++
		log.Error("failed to insert prices", zap.Any("prices", sp), zap.Error(err))
		return
	}
	if err = j.store.SetFilingPrices(ctx, c.FilingID, id); err != nil {
		rep.Failed++
		log.Error("failed to link prices", zap.Int64("prices_id", id), zap.Error(err))
		return
	}
	rep.Priced++
	if sp.Open == nil || sp.NinetyDay == nil {
		rep.NoPrices++
	}

	in, err := j.agg.Update(ctx, models.PricedOutcome{FilingID: c.FilingID, OwnerCIK: c.OwnerCIK, StockPrices: sp})
	if err != nil {
		rep.Failed++
		log.Error("failed to update insider stats", zap.String("owner_cik", c.OwnerCIK), zap.Error(err))
		return
	}
	if in != nil {
		rep.Aggregated++
	}
}

func hasBarOnOrAfter(obs []models.PriceObservation, day time.Time) bool {
	for _, o := range obs {
		if !o.Date.Before(day) {
			return true
		}
	}
	return false
}

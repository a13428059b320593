package aggregator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/metrics"
	"github.com/bighogz/insider-trades/internal/models"
	"github.com/bighogz/insider-trades/internal/store"
)

// InsiderStore is the slice of store.Store the aggregator reads and writes.
type InsiderStore interface {
	GetInsider(ctx context.Context, cik string) (*models.Insider, error)
	UpdateInsiderStats(ctx context.Context, cik string, numTrades, numCorrect int, ninetyDayReturn *float64) (*models.Insider, error)
}

// Stats is an insider's running outcome state.
type Stats struct {
	NumTrades       int
	NumCorrect      int
	NinetyDayReturn *float64
}

// Apply folds one priced outcome into s. ok is false when either price is
// missing (or open is zero) and s must be left as it is.
func Apply(s Stats, open, ninetyDay *float64) (next Stats, ok bool) {
	if open == nil || ninetyDay == nil || *open == 0 {
		return s, false
	}
	ret := *ninetyDay / *open - 1

	avg := ret
	if s.NumTrades > 0 && s.NinetyDayReturn != nil {
		avg = (*s.NinetyDayReturn*float64(s.NumTrades) + ret) / float64(s.NumTrades+1)
	}
	next = Stats{NumTrades: s.NumTrades + 1, NumCorrect: s.NumCorrect, NinetyDayReturn: &avg}
	if ret > 0 {
		next.NumCorrect++
	}
	return next, true
}

// Aggregator applies priced outcomes to stored insider stats one at a time.
type Aggregator struct {
	store InsiderStore
	log   *zap.Logger
	mu    sync.Mutex
}

func New(s InsiderStore, log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{store: s, log: log}
}

// Update returns the insider's new stats, or nil with a nil error when the
// outcome carries nothing to update.
func (a *Aggregator) Update(ctx context.Context, o models.PricedOutcome) (*models.Insider, error) {
	p := o.StockPrices
	if p.Open == nil || p.NinetyDay == nil {
		metrics.InsiderUpdates.WithLabelValues("skipped").Inc()
		a.log.Debug("no prices to aggregate", zap.String("filing_id", o.FilingID))
		return nil, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var cur Stats
	in, err := a.store.GetInsider(ctx, o.OwnerCIK)
	switch {
	case err == nil:
		cur = Stats{NumTrades: in.NumTrades, NumCorrect: in.NumCorrect, NinetyDayReturn: in.NinetyDayReturn}
	case errors.Is(err, store.ErrNotFound):
	default:
		metrics.InsiderUpdates.WithLabelValues("failed").Inc()
		return nil, err
	}

	next, ok := Apply(cur, p.Open, p.NinetyDay)
	if !ok {
		metrics.InsiderUpdates.WithLabelValues("skipped").Inc()
		a.log.Warn("zero open price, skipping outcome",
			zap.String("filing_id", o.FilingID), zap.String("owner_cik", o.OwnerCIK))
		return nil, nil
	}
	updated, err := a.store.UpdateInsiderStats(ctx, o.OwnerCIK, next.NumTrades, next.NumCorrect, next.NinetyDayReturn)
	if err != nil {
		metrics.InsiderUpdates.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.InsiderUpdates.WithLabelValues("updated").Inc()
	a.log.Info("insider stats updated",
		zap.String("owner_cik", o.OwnerCIK),
		zap.Int("num_trades", next.NumTrades),
		zap.Int("num_correct", next.NumCorrect),
		zap.Float64("ninety_day_return", *next.NinetyDayReturn))
	return updated, nil
}

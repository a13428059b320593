package prices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/models"
)

// DateLayout is the day format used in price queries.
const DateLayout = "2006-01-02"

// Source returns daily price observations for ticker between start and end
// inclusive, oldest first. A partial history may come back with an error.
type Source interface {
	Name() string
	History(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceObservation, error)
}

type Frequency string

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

var ErrNoData = errors.New("prices: no data")

// Chain asks each source in turn and returns the first non-empty history.
type Chain struct {
	Sources []Source
	log     *zap.Logger
}

func NewChain(log *zap.Logger, sources ...Source) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{Sources: sources, log: log}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

func (c *Chain) History(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceObservation, error) {
	var errs []error
	for _, s := range c.Sources {
		obs, err := s.History(ctx, ticker, start, end)
		if err == nil && len(obs) > 0 {
			return obs, nil
		}
		if err == nil {
			err = ErrNoData
		}
		c.log.Warn("price source failed",
			zap.String("source", s.Name()), zap.String("ticker", ticker), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrNoData
	}
	return nil, errors.Join(errs...)
}

// FirstOpenOnOrAfter returns the open of the first observation dated on or
// after day that has one.
func FirstOpenOnOrAfter(obs []models.PriceObservation, day time.Time) *float64 {
	for _, o := range obs {
		if !before(o.Date, day) && o.Open != nil {
			return o.Open
		}
	}
	return nil
}

// FirstCloseOnOrAfter is FirstOpenOnOrAfter for closing prices.
func FirstCloseOnOrAfter(obs []models.PriceObservation, day time.Time) *float64 {
	for _, o := range obs {
		if !before(o.Date, day) && o.Close != nil {
			return o.Close
		}
	}
	return nil
}

// before compares calendar days only.
func before(a, b time.Time) bool {
	return a.Format(DateLayout) < b.Format(DateLayout)
}

package prices

import (
	"context"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bighogz/insider-trades/internal/models"
)

// Cached memoizes a Source per (ticker, start, end). Several filings by
// different insiders of one issuer on one day share a history.
type Cached struct {
	src   Source
	cache *gocache.Cache
}

func NewCached(src Source, ttl time.Duration) *Cached {
	return &Cached{src: src, cache: gocache.New(ttl, 2*ttl)}
}

func (c *Cached) Name() string { return c.src.Name() }

func (c *Cached) History(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceObservation, error) {
	key := ticker + "|" + start.Format(DateLayout) + "|" + end.Format(DateLayout)
	if v, ok := c.cache.Get(key); ok {
		return v.([]models.PriceObservation), nil
	}
	obs, err := c.src.History(ctx, ticker, start, end)
	if err != nil {
		return obs, err
	}
	c.cache.SetDefault(key, obs)
	return obs, nil
}

func sortByDate(obs []models.PriceObservation) {
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Date.Before(obs[j].Date) })
}

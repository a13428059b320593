package prices

import (
	"context"
	"fmt"
	"strings"
	"time"

	yfmodels "github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/bighogz/insider-trades/internal/models"
)

// BarFetcher returns daily bars for sym in [start, end).
type BarFetcher func(sym string, start, end time.Time) ([]yfmodels.Bar, error)

// Yahoo reads daily bars through go-yfinance. It needs no key and is the
// last source in the chain.
type Yahoo struct {
	fetch BarFetcher
}

func NewYahoo() *Yahoo {
	return &Yahoo{fetch: yfinanceBars}
}

// NewYahooWith is NewYahoo with a custom bar fetcher.
func NewYahooWith(fetch BarFetcher) *Yahoo {
	return &Yahoo{fetch: fetch}
}

func yfinanceBars(sym string, start, end time.Time) ([]yfmodels.Bar, error) {
	t, err := ticker.New(sym)
	if err != nil {
		return nil, err
	}
	defer t.Close()
	return t.HistoryRange(start, end, "1d")
}

func (y *Yahoo) Name() string { return "yahoo" }

// ToYahooSymbol converts class-share tickers: BRK.B -> BRK-B.
func ToYahooSymbol(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ".", "-")
}

func (y *Yahoo) History(ctx context.Context, symbol string, start, end time.Time) ([]models.PriceObservation, error) {
	if symbol == "" {
		return nil, ErrNoData
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym := ToYahooSymbol(symbol)
	// The range end is exclusive; include the whole end day.
	from := start.Truncate(24 * time.Hour)
	to := end.Truncate(24*time.Hour).AddDate(0, 0, 1)
	bars, err := y.fetch(sym, from, to)
	if err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", sym, err)
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	out := make([]models.PriceObservation, 0, len(bars))
	for _, b := range bars {
		d := b.Date.UTC()
		out = append(out, models.PriceObservation{
			Date:  time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			Open:  positive(b.Open),
			Close: positive(b.Close),
		})
	}
	sortByDate(out)
	return out, nil
}

// positive maps the library's zero placeholder for a missing value to nil.
func positive(f float64) *float64 {
	if f <= 0 {
		return nil
	}
	return &f
}

package aggregator

import (
	"context"
	"math"
	"testing"

	"github.com/bighogz/insider-trades/internal/models"
	"github.com/bighogz/insider-trades/internal/store"
)

func f64(v float64) *float64 { return &v }

type memInsiders struct {
	rows   map[string]models.Insider
	writes int
}

func (m *memInsiders) GetInsider(_ context.Context, cik string) (*models.Insider, error) {
	in, ok := m.rows[cik]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &in, nil
}

func (m *memInsiders) UpdateInsiderStats(_ context.Context, cik string, numTrades, numCorrect int, ret *float64) (*models.Insider, error) {
	m.writes++
	in := m.rows[cik]
	in.CIK, in.NumTrades, in.NumCorrect, in.NinetyDayReturn = cik, numTrades, numCorrect, ret
	m.rows[cik] = in
	return &in, nil
}

func TestApply(t *testing.T) {
	tests := []struct {
		name         string
		in           Stats
		open, ninety *float64
		wantOK       bool
		want         Stats
	}{
		{"fresh positive", Stats{}, f64(100), f64(110), true, Stats{1, 1, f64(0.10)}},
		{"accumulate negative", Stats{3, 3, f64(0.2)}, f64(100), f64(90), true, Stats{4, 3, f64(0.125)}},
		{"flat is not correct", Stats{}, f64(50), f64(50), true, Stats{1, 0, f64(0)}},
		{"null average restarts", Stats{5, 2, nil}, f64(10), f64(12), true, Stats{6, 3, f64(0.2)}},
		{"missing open", Stats{3, 3, f64(0.2)}, nil, f64(90), false, Stats{3, 3, f64(0.2)}},
		{"missing ninety", Stats{}, f64(100), nil, false, Stats{}},
		{"zero open", Stats{}, f64(0), f64(10), false, Stats{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Apply(tt.in, tt.open, tt.ninety)
			if ok != tt.wantOK {
				t.Fatalf("ok=%v want %v", ok, tt.wantOK)
			}
			if got.NumTrades != tt.want.NumTrades || got.NumCorrect != tt.want.NumCorrect {
				t.Fatalf("got %d/%d want %d/%d", got.NumTrades, got.NumCorrect, tt.want.NumTrades, tt.want.NumCorrect)
			}
			if (got.NinetyDayReturn == nil) != (tt.want.NinetyDayReturn == nil) {
				t.Fatalf("return presence got %v want %v", got.NinetyDayReturn, tt.want.NinetyDayReturn)
			}
			if got.NinetyDayReturn != nil && math.Abs(*got.NinetyDayReturn-*tt.want.NinetyDayReturn) > 1e-9 {
				t.Fatalf("return=%v want %v", *got.NinetyDayReturn, *tt.want.NinetyDayReturn)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	st := &memInsiders{rows: map[string]models.Insider{
		"2": {CIK: "2", Name: "JANE DOE", NumTrades: 3, NumCorrect: 3, NinetyDayReturn: f64(0.2)},
	}}
	agg := New(st, nil)

	in, err := agg.Update(ctx, models.PricedOutcome{OwnerCIK: "1", StockPrices: models.StockPrices{Open: f64(100), NinetyDay: f64(110)}})
	if err != nil || in == nil {
		t.Fatalf("fresh insider: in=%v err=%v", in, err)
	}
	if in.NumTrades != 1 || in.NumCorrect != 1 || math.Abs(*in.NinetyDayReturn-0.10) > 1e-9 {
		t.Fatalf("fresh insider = %+v", in)
	}

	in, err = agg.Update(ctx, models.PricedOutcome{OwnerCIK: "2", StockPrices: models.StockPrices{Open: f64(100), NinetyDay: f64(90)}})
	if err != nil || in == nil {
		t.Fatalf("existing insider: in=%v err=%v", in, err)
	}
	if in.Name != "JANE DOE" || in.NumTrades != 4 || in.NumCorrect != 3 || math.Abs(*in.NinetyDayReturn-0.125) > 1e-9 {
		t.Fatalf("existing insider = %+v", in)
	}

	writes := st.writes
	in, err = agg.Update(ctx, models.PricedOutcome{OwnerCIK: "2", StockPrices: models.StockPrices{Open: nil, NinetyDay: f64(90)}})
	if err != nil || in != nil {
		t.Fatalf("missing price: in=%v err=%v, want nil sentinel", in, err)
	}
	if st.writes != writes || st.rows["2"].NumTrades != 4 {
		t.Fatalf("missing price changed state: %+v", st.rows["2"])
	}
}

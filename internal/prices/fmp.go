package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bighogz/insider-trades/internal/httpclient"
	"github.com/bighogz/insider-trades/internal/models"
)

const fmpBaseURL = "https://financialmodelingprep.com/stable"

// FMP reads end-of-day bars from Financial Modeling Prep.
type FMP struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func NewFMP(apiKey, baseURL string, hc *http.Client) *FMP {
	if hc == nil {
		hc = httpclient.Default
	}
	if baseURL == "" {
		baseURL = fmpBaseURL
	}
	return &FMP{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

func (c *FMP) Name() string { return "fmp" }

type fmpBar struct {
	Date  string   `json:"date"`
	Open  *float64 `json:"open"`
	Close *float64 `json:"close"`
}

func (c *FMP) History(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceObservation, error) {
	if c.APIKey == "" || ticker == "" {
		return nil, ErrNoData
	}
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("from", start.Format(DateLayout))
	params.Set("to", end.Format(DateLayout))
	params.Set("apikey", c.APIKey)

	var raw json.RawMessage
	if err := httpclient.GetJSON(ctx, c.HTTP, c.BaseURL+"/historical-price-eod/full?"+params.Encode(), nil, &raw); err != nil {
		return nil, fmt.Errorf("fmp %s: %w", ticker, err)
	}
	bars, err := decodeFMPBars(raw)
	if err != nil {
		return nil, fmt.Errorf("fmp %s: %w", ticker, err)
	}
	out := make([]models.PriceObservation, 0, len(bars))
	for _, b := range bars {
		if len(b.Date) < 10 {
			continue
		}
		d, err := time.Parse(DateLayout, b.Date[:10])
		if err != nil {
			continue
		}
		out = append(out, models.PriceObservation{Date: d, Open: b.Open, Close: b.Close})
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	sortByDate(out)
	return out, nil
}

// decodeFMPBars accepts the stable array form and the legacy
// {"historical": [...]} form. An "Error Message" object is an error.
func decodeFMPBars(raw json.RawMessage) ([]fmpBar, error) {
	var bars []fmpBar
	if err := json.Unmarshal(raw, &bars); err == nil {
		return bars, nil
	}
	var obj struct {
		Historical   []fmpBar `json:"historical"`
		ErrorMessage string   `json:"Error Message"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj.ErrorMessage != "" {
		return nil, fmt.Errorf("%s", obj.ErrorMessage)
	}
	return obj.Historical, nil
}

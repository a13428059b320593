package prices

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/httpclient"
	"github.com/bighogz/insider-trades/internal/metrics"
	"github.com/bighogz/insider-trades/internal/models"
	"github.com/bighogz/insider-trades/internal/paginate"
)

// Intrinio reads /securities/{ticker}/prices from the Intrinio v2 API.
type Intrinio struct {
	APIKey    string
	BaseURL   string
	PageSize  int
	Frequency Frequency
	HTTP      *http.Client
	log       *zap.Logger
}

func NewIntrinio(apiKey, baseURL string, pageSize int, hc *http.Client, log *zap.Logger) *Intrinio {
	if hc == nil {
		hc = httpclient.Default
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Intrinio{
		APIKey:    apiKey,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		PageSize:  pageSize,
		Frequency: Daily,
		HTTP:      hc,
		log:       log,
	}
}

func (c *Intrinio) Name() string { return "intrinio" }

type intrinioResponse struct {
	StockPrices []struct {
		Date  string   `json:"date"`
		Open  *float64 `json:"open"`
		Close *float64 `json:"close"`
	} `json:"stock_prices"`
	NextPage *string `json:"next_page"`
}

// Page fetches one page; req.Token carries the previous response's next_page.
func (c *Intrinio) Page(ctx context.Context, ticker string, start, end time.Time, req paginate.Request) (paginate.Page[models.PriceObservation], error) {
	q := url.Values{}
	q.Set("start_date", start.Format(DateLayout))
	q.Set("end_date", end.Format(DateLayout))
	q.Set("frequency", string(c.Frequency))
	q.Set("page_size", strconv.Itoa(req.Size))
	if req.Token != "" {
		q.Set("next_page", req.Token)
	}
	q.Set("api_key", c.APIKey)
	u := c.BaseURL + "/securities/" + url.PathEscape(ticker) + "/prices?" + q.Encode()

	var resp intrinioResponse
	if err := httpclient.GetJSON(ctx, c.HTTP, u, nil, &resp); err != nil {
		return paginate.Page[models.PriceObservation]{}, fmt.Errorf("intrinio %s: %w", ticker, err)
	}
	items := make([]models.PriceObservation, 0, len(resp.StockPrices))
	for _, p := range resp.StockPrices {
		d, err := time.Parse(DateLayout, p.Date)
		if err != nil {
			c.log.Warn("intrinio: bad price date", zap.String("ticker", ticker), zap.String("date", p.Date))
			continue
		}
		items = append(items, models.PriceObservation{Date: d, Open: p.Open, Close: p.Close})
	}
	page := paginate.Page[models.PriceObservation]{Items: items}
	if resp.NextPage != nil && *resp.NextPage != "" {
		page.Next = *resp.NextPage
		c.log.Info("getting next page", zap.String("ticker", ticker), zap.String("next_page", page.Next))
	} else {
		page.Done = true
	}
	return page, nil
}

// History returns observations oldest first. The API lists newest first.
func (c *Intrinio) History(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceObservation, error) {
	obs, err := paginate.Fetch(ctx, c.PageSize, func(ctx context.Context, req paginate.Request) (paginate.Page[models.PriceObservation], error) {
		return c.Page(ctx, ticker, start, end, req)
	}, metrics.PageCounter("intrinio"))
	sortByDate(obs)
	return obs, err
}

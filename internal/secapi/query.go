package secapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/httpclient"
	"github.com/bighogz/insider-trades/internal/metrics"
	"github.com/bighogz/insider-trades/internal/models"
	"github.com/bighogz/insider-trades/internal/paginate"
)

// IndexTimeLayout is the filedAt format returned by the index service.
const IndexTimeLayout = "2006-01-02T15:04:05-0700"

// MaxResultsPerQuery is where the index service stops paging reliably.
// Callers split date windows so a single query stays below it.
const MaxResultsPerQuery = 10000

// QueryClient pages through Form 4 hits of the sec-api.io full-text query API.
type QueryClient struct {
	APIKey   string
	BaseURL  string
	PageSize int
	HTTP     *http.Client
	log      *zap.Logger
}

func NewQueryClient(apiKey, baseURL string, pageSize int, hc *http.Client, log *zap.Logger) *QueryClient {
	if hc == nil {
		hc = httpclient.Default
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryClient{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), PageSize: pageSize, HTTP: hc, log: log}
}

// FormFourQuery matches original Form 4 filings (no 4/A amendments, no N-4
// fund forms) filed between start and end inclusive, as YYYY-MM-DD.
func FormFourQuery(start, end string) string {
	return fmt.Sprintf(`formType:4 AND formType:(NOT "N-4") AND formType:(NOT "4/A") AND filedAt:[%s TO %s]`, start, end)
}

type queryRequest struct {
	Query struct {
		QueryString struct {
			Query string `json:"query"`
		} `json:"query_string"`
	} `json:"query"`
	From string                         `json:"from"`
	Size string                         `json:"size"`
	Sort []map[string]map[string]string `json:"sort"`
}

type queryResponse struct {
	Total struct {
		Value int `json:"value"`
	} `json:"total"`
	Filings []struct {
		Ticker              string `json:"ticker"`
		FormType            string `json:"formType"`
		AccessionNo         string `json:"accessionNo"`
		FiledAt             string `json:"filedAt"`
		LinkToFilingDetails string `json:"linkToFilingDetails"`
	} `json:"filings"`
}

// Page fetches one page of index hits.
func (c *QueryClient) Page(ctx context.Context, start, end string, req paginate.Request) (paginate.Page[models.IndexEntry], error) {
	var body queryRequest
	body.Query.QueryString.Query = FormFourQuery(start, end)
	body.From = fmt.Sprint(req.Offset)
	body.Size = fmt.Sprint(req.Size)
	body.Sort = []map[string]map[string]string{{"filedAt": {"order": "desc"}}}

	payload, err := json.Marshal(body)
	if err != nil {
		return paginate.Page[models.IndexEntry]{}, err
	}
	u := c.BaseURL + "?token=" + url.QueryEscape(c.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return paginate.Page[models.IndexEntry]{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	raw, err := httpclient.Do(c.HTTP, httpReq)
	if err != nil {
		return paginate.Page[models.IndexEntry]{}, fmt.Errorf("sec-api query from=%d: %w", req.Offset, err)
	}
	var resp queryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return paginate.Page[models.IndexEntry]{}, fmt.Errorf("sec-api query from=%d: decode: %w", req.Offset, err)
	}

	entries := make([]models.IndexEntry, 0, len(resp.Filings))
	for _, f := range resp.Filings {
		e := models.IndexEntry{
			FiledAt:             f.FiledAt,
			LinkToFilingDetails: f.LinkToFilingDetails,
			AccessionNo:         f.AccessionNo,
			FormType:            f.FormType,
		}
		if t := strings.TrimSpace(f.Ticker); t != "" {
			e.Ticker = &t
		}
		entries = append(entries, e)
	}
	c.log.Debug("sec-api page",
		zap.Int("from", req.Offset),
		zap.Int("hits", len(entries)),
		zap.Int("total", resp.Total.Value))
	return paginate.Page[models.IndexEntry]{Items: entries}, nil
}

// Filings returns every index hit between start and end.
func (c *QueryClient) Filings(ctx context.Context, start, end string) ([]models.IndexEntry, error) {
	entries, err := paginate.Fetch(ctx, c.PageSize, func(ctx context.Context, req paginate.Request) (paginate.Page[models.IndexEntry], error) {
		return c.Page(ctx, start, end, req)
	}, metrics.PageCounter("sec-api"))
	if err != nil {
		return nil, err
	}
	if len(entries) >= MaxResultsPerQuery {
		c.log.Warn("index query window at result ceiling; narrow the date range",
			zap.String("start", start), zap.String("end", end), zap.Int("hits", len(entries)))
	}
	return entries, nil
}

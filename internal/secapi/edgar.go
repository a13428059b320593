package secapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/ratelimit"

	"github.com/bighogz/insider-trades/internal/httpclient"
)

// UpstreamFetchError is a failed document download. It fails one filing only.
type UpstreamFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("edgar fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("edgar fetch %s: %v", e.URL, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// EdgarClient downloads filing documents from www.sec.gov. EDGAR rejects
// requests without a contact User-Agent and throttles above 10 req/s.
type EdgarClient struct {
	UserAgent string
	HTTP      *http.Client
	rl        ratelimit.Limiter
}

func NewEdgarClient(userAgent string, perSecond int, hc *http.Client) *EdgarClient {
	if hc == nil {
		hc = httpclient.Default
	}
	rl := ratelimit.NewUnlimited()
	if perSecond > 0 {
		rl = ratelimit.New(perSecond)
	}
	return &EdgarClient{UserAgent: userAgent, HTTP: hc, rl: rl}
}

// Fetch returns the raw document at url.
func (c *EdgarClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &UpstreamFetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.UserAgent)
	c.rl.Take()
	body, err := httpclient.Do(c.HTTP, req)
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			return nil, &UpstreamFetchError{URL: url, StatusCode: se.StatusCode, Err: err}
		}
		return nil, &UpstreamFetchError{URL: url, Err: err}
	}
	return body, nil
}

// XMLURL turns an index link into the raw XML document link by dropping the
// second-to-last path segment (the XSL rendering directory):
// .../000089924321034984/xslF345X03/doc4.xml -> .../000089924321034984/doc4.xml
func XMLURL(link string) string {
	parts := strings.Split(link, "/")
	if len(parts) < 2 {
		return link
	}
	last := parts[len(parts)-1]
	return strings.Join(parts[:len(parts)-2], "/") + "/" + last
}

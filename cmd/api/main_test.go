package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/ingest"
	"github.com/bighogz/insider-trades/internal/models"
	"github.com/bighogz/insider-trades/internal/store"
)

type fakeIngester struct {
	mu   sync.Mutex
	days []time.Time
}

func (f *fakeIngester) Run(ctx context.Context, start, end time.Time) (*ingest.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, start)
	return &ingest.Report{}, nil
}

func newTestServer(t *testing.T, adminKey string) (*server, *store.SQLStore, *fakeIngester) {
	t.Helper()
	st, err := store.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	ing := &fakeIngester{}
	return newServer(context.Background(), st, ing, adminKey, zap.NewNop()), st, ing
}

func do(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t, "")
	rec := do(s.routes(), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}

func TestInsiderLookup(t *testing.T) {
	s, st, _ := newTestServer(t, "")
	h := s.routes()
	if rec := do(h, http.MethodGet, "/api/insiders/0001214128", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing insider status=%d", rec.Code)
	}
	ctx := context.Background()
	if err := st.UpsertInsiderName(ctx, "0001214128", "LEVINSON ARTHUR D"); err != nil {
		t.Fatal(err)
	}
	rec := do(h, http.MethodGet, "/api/insiders/0001214128", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body)
	}
	var in models.Insider
	if err := json.NewDecoder(rec.Body).Decode(&in); err != nil {
		t.Fatal(err)
	}
	if in.Name != "LEVINSON ARTHUR D" || in.NumTrades != 0 {
		t.Fatalf("insider=%+v", in)
	}
}

func TestErrorURLList(t *testing.T) {
	s, st, _ := newTestServer(t, "")
	st.InsertErrorURL(context.Background(), models.ErrorURL{URL: "https://www.sec.gov/x/doc4.xml"})
	rec := do(s.routes(), http.MethodGet, "/api/error-urls", nil)
	var body struct {
		Count int `json:"count"`
	}
	json.NewDecoder(rec.Body).Decode(&body)
	if rec.Code != http.StatusOK || body.Count != 1 {
		t.Fatalf("status=%d count=%d", rec.Code, body.Count)
	}
}

func TestIngestRequiresAdminKey(t *testing.T) {
	s, _, ing := newTestServer(t, "secret")
	h := s.routes()
	if rec := do(h, http.MethodPost, "/api/ingest?date=2022-01-13", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no key status=%d", rec.Code)
	}
	rec := do(h, http.MethodPost, "/api/ingest?date=2022-01-13", map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("with key status=%d body=%s", rec.Code, rec.Body)
	}
	s.stop()
	if len(ing.days) != 1 || ing.days[0].Format(ingest.DateLayout) != "2022-01-13" {
		t.Fatalf("ingested days=%v", ing.days)
	}
	if rec := do(h, http.MethodPost, "/api/ingest?date=13-01-2022", map[string]string{"X-Admin-Key": "secret"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date status=%d", rec.Code)
	}
}

func TestIngestRateLimitedWithoutKey(t *testing.T) {
	s, _, _ := newTestServer(t, "")
	h := s.routes()
	if rec := do(h, http.MethodPost, "/api/ingest?date=2022-01-13", nil); rec.Code != http.StatusAccepted {
		t.Fatalf("first status=%d", rec.Code)
	}
	if rec := do(h, http.MethodPost, "/api/ingest?date=2022-01-14", nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", rec.Code)
	}
	s.stop()
}

type blockingIngester struct {
	started chan struct{}
	err     chan error
}

func (b *blockingIngester) Run(ctx context.Context, start, end time.Time) (*ingest.Report, error) {
	close(b.started)
	<-ctx.Done()
	b.err <- ctx.Err()
	return nil, ctx.Err()
}

func TestStopCancelsBackgroundIngest(t *testing.T) {
	st, err := store.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()
	ing := &blockingIngester{started: make(chan struct{}), err: make(chan error, 1)}
	s := newServer(context.Background(), st, ing, "k", zap.NewNop())

	rec := do(s.routes(), http.MethodPost, "/api/ingest?date=2022-01-13", map[string]string{"X-Admin-Key": "k"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status=%d", rec.Code)
	}
	<-ing.started

	done := make(chan struct{})
	go func() {
		s.stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not return; ingest context never cancelled")
	}
	if err := <-ing.err; err != context.Canceled {
		t.Fatalf("ingest ctx err=%v", err)
	}
}

package ingest

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/form4"
	"github.com/bighogz/insider-trades/internal/metrics"
	"github.com/bighogz/insider-trades/internal/models"
	"github.com/bighogz/insider-trades/internal/secapi"
	"github.com/bighogz/insider-trades/internal/telemetry"
)

// Fetcher downloads one filing document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ErrorSink records documents that could not be turned into a filing.
type ErrorSink interface {
	InsertErrorURL(ctx context.Context, e models.ErrorURL) (bool, error)
}

// Outcome is the result of supervising one document: exactly one of Filing
// and ErrorURL is set. Err carries the cause for an ErrorURL.
type Outcome struct {
	Filing   *models.Filing
	ErrorURL string
	Err      error
}

// Supervisor isolates per-document failures so one bad filing never stops
// a batch.
type Supervisor struct {
	fetch  Fetcher
	parser *form4.Parser
	errs   ErrorSink
	log    *zap.Logger
}

func NewSupervisor(f Fetcher, p *form4.Parser, errs ErrorSink, log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	if p == nil {
		p = form4.NewParser(log)
	}
	return &Supervisor{fetch: f, parser: p, errs: errs, log: log}
}

// ParseFiledAt reads the index timestamp, with or without a colon in the offset.
func ParseFiledAt(s string) (time.Time, error) {
	if t, err := time.Parse(secapi.IndexTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Process supervises one index entry.
func (s *Supervisor) Process(ctx context.Context, e models.IndexEntry) Outcome {
	url := secapi.XMLURL(e.LinkToFilingDetails)
	filedAt, err := ParseFiledAt(e.FiledAt)
	if err != nil {
		return s.fail(ctx, url, nil, fmt.Errorf("filedAt %q: %w", e.FiledAt, err))
	}
	return s.ProcessURL(ctx, url, filedAt)
}

// ProcessURL fetches and extracts the document at url, which must already be
// the raw XML link.
func (s *Supervisor) ProcessURL(ctx context.Context, url string, filedAt time.Time) (out Outcome) {
	ctx, span := telemetry.Start(ctx, "ingest.filing", "url", url)
	defer func() { telemetry.End(span, out.Err) }()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic while extracting filing",
				zap.String("url", url), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			out = s.fail(ctx, url, &filedAt, fmt.Errorf("panic: %v", r))
		}
	}()

	raw, err := s.fetch.Fetch(ctx, url)
	if err != nil {
		return s.fail(ctx, url, &filedAt, err)
	}
	f, err := s.parser.Filing(raw, filedAt, url)
	if err != nil {
		return s.fail(ctx, url, &filedAt, err)
	}
	metrics.FilingsProcessed.WithLabelValues("parsed").Inc()
	s.log.Debug("filing extracted",
		zap.String("filing_id", f.ID),
		zap.Int("non_derivative", len(f.NonDerivative)),
		zap.Int("derivative", len(f.Derivative)))
	return Outcome{Filing: f}
}

func (s *Supervisor) fail(ctx context.Context, url string, filedAt *time.Time, err error) Outcome {
	metrics.FilingsProcessed.WithLabelValues("error").Inc()
	s.log.Error("filing extraction failed", zap.String("url", url), zap.Error(err))
	if s.errs != nil {
		if _, serr := s.errs.InsertErrorURL(ctx, models.ErrorURL{URL: url, FiledAt: filedAt}); serr != nil {
			s.log.Error("failed to record error url", zap.String("url", url), zap.Error(serr))
		}
	}
	return Outcome{ErrorURL: url, Err: err}
}

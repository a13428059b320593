package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/metrics"
	"github.com/bighogz/insider-trades/internal/models"
	"github.com/bighogz/insider-trades/internal/store"
	"github.com/bighogz/insider-trades/internal/telemetry"
)

const DateLayout = "2006-01-02"

// UpstreamQueryError means the filing index could not be read. The run's
// input is untrustworthy, so it is fatal.
type UpstreamQueryError struct {
	Start, End string
	Err        error
}

func (e *UpstreamQueryError) Error() string {
	return fmt.Sprintf("index query %s..%s: %v", e.Start, e.End, e.Err)
}

func (e *UpstreamQueryError) Unwrap() error { return e.Err }

// IndexQuery lists Form 4 index entries filed between two YYYY-MM-DD days.
type IndexQuery interface {
	Filings(ctx context.Context, start, end string) ([]models.IndexEntry, error)
}

// Store is the persistence the runner needs.
type Store interface {
	ErrorSink
	UpsertCompany(ctx context.Context, c models.Company) error
	UpsertInsiderName(ctx context.Context, cik, name string) error
	InsertFiling(ctx context.Context, f *models.Filing) (store.InsertResult, error)
	ListErrorURLs(ctx context.Context) ([]models.ErrorURL, error)
	DeleteErrorURL(ctx context.Context, url string) (bool, error)
}

type Notifier interface {
	SendErrorURLs(dateString string, urls []string) bool
}

// Report summarizes one run.
type Report struct {
	RunID         string   `json:"run_id"`
	Start         string   `json:"start"`
	End           string   `json:"end"`
	Entries       int      `json:"entries"`
	Skipped       int      `json:"skipped"`
	Parsed        int      `json:"parsed"`
	Inserted      int      `json:"inserted"`
	Existing      int      `json:"existing"`
	PersistFailed int      `json:"persist_failed"`
	Transactions  int      `json:"transactions"`
	Collisions    int      `json:"collisions"`
	ErrorURLs     []string `json:"error_urls"`
	Notified      bool     `json:"notified"`
}

type Runner struct {
	index  IndexQuery
	sup    *Supervisor
	store  Store
	notify Notifier
	log    *zap.Logger
}

// NewRunner wires a runner. notify may be nil.
func NewRunner(index IndexQuery, sup *Supervisor, st Store, notify Notifier, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{index: index, sup: sup, store: st, notify: notify, log: log}
}

// Run ingests every day from start to end inclusive, one index query per
// day so a single query stays under the index service's result ceiling.
func (r *Runner) Run(ctx context.Context, start, end time.Time) (rep *Report, err error) {
	began := time.Now()
	rep = &Report{RunID: uuid.NewString(), Start: start.Format(DateLayout), End: end.Format(DateLayout), ErrorURLs: []string{}}
	log := r.log.With(zap.String("run_id", rep.RunID))
	ctx, span := telemetry.Start(ctx, "ingest.run", "run_id", rep.RunID, "start", rep.Start, "end", rep.End)
	defer func() {
		telemetry.End(span, err)
		metrics.RunDuration.WithLabelValues("ingest").Observe(time.Since(began).Seconds())
	}()

	log.Info("ingest started", zap.String("start", rep.Start), zap.String("end", rep.End))
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := r.runDay(ctx, log, day.Format(DateLayout), rep); err != nil {
			return rep, err
		}
	}

	if len(rep.ErrorURLs) > 0 && r.notify != nil {
		label := rep.Start
		if rep.End != rep.Start {
			label += " to " + rep.End
		}
		rep.Notified = r.notify.SendErrorURLs(label, rep.ErrorURLs)
	}
	log.Info("ingest finished",
		zap.Int("entries", rep.Entries),
		zap.Int("parsed", rep.Parsed),
		zap.Int("inserted", rep.Inserted),
		zap.Int("existing", rep.Existing),
		zap.Int("errors", len(rep.ErrorURLs)),
		zap.Duration("took", time.Since(began)))
	return rep, nil
}

func (r *Runner) runDay(ctx context.Context, log *zap.Logger, day string, rep *Report) error {
	entries, err := r.index.Filings(ctx, day, day)
	if err != nil {
		log.Error("error getting index query results", zap.String("day", day), zap.Error(err))
		return &UpstreamQueryError{Start: day, End: day, Err: err}
	}
	// Entries with a ticker are the issuer's copy of the filing; the
	// owner's copy is listed separately without one.
	owned := lo.Filter(entries, func(e models.IndexEntry, _ int) bool { return e.Ticker == nil })
	rep.Entries += len(entries)
	rep.Skipped += len(entries) - len(owned)
	log.Info("index entries", zap.String("day", day), zap.Int("total", len(entries)), zap.Int("owner_filings", len(owned)))

	for _, e := range owned {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := r.sup.Process(ctx, e)
		if out.Filing == nil {
			rep.ErrorURLs = append(rep.ErrorURLs, out.ErrorURL)
			continue
		}
		rep.Parsed++
		r.persist(ctx, log, out.Filing, rep)
	}
	return nil
}

// persist writes one filing. Failures are logged with the payload and the
// run continues.
func (r *Runner) persist(ctx context.Context, log *zap.Logger, f *models.Filing, rep *Report) {
	res, err := r.Persist(ctx, f)
	if err != nil {
		rep.PersistFailed++
		metrics.FilingsPersisted.WithLabelValues("failed").Inc()
		log.Error("failed to persist filing", zap.String("filing_id", f.ID), zap.Any("filing", f), zap.Error(err))
		return
	}
	if !res.Inserted {
		rep.Existing++
		metrics.FilingsPersisted.WithLabelValues("existing").Inc()
		log.Debug("filing already stored", zap.String("filing_id", f.ID))
		return
	}
	rep.Inserted++
	rep.Transactions += res.Transactions
	rep.Collisions += res.Collisions
	metrics.FilingsPersisted.WithLabelValues("inserted").Inc()
}

// Persist upserts the issuer and the owner, then inserts the filing.
func (r *Runner) Persist(ctx context.Context, f *models.Filing) (store.InsertResult, error) {
	if err := r.store.UpsertCompany(ctx, f.Company); err != nil {
		return store.InsertResult{}, err
	}
	if err := r.store.UpsertInsiderName(ctx, f.OwnerCIK, f.OwnerName); err != nil {
		return store.InsertResult{}, err
	}
	return r.store.InsertFiling(ctx, f)
}

// RetryReport summarizes a RetryErrors pass.
type RetryReport struct {
	Retried   int `json:"retried"`
	Recovered int `json:"recovered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// RetryErrors runs stored error URLs through the supervisor again and drops
// the ones that now persist.
func (r *Runner) RetryErrors(ctx context.Context) (*RetryReport, error) {
	list, err := r.store.ListErrorURLs(ctx)
	if err != nil {
		return nil, err
	}
	rep := &RetryReport{}
	for _, e := range list {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if e.FiledAt == nil {
			rep.Skipped++
			r.log.Warn("error url has no filing time; cannot rebuild its id", zap.String("url", e.URL))
			continue
		}
		rep.Retried++
		out := r.sup.ProcessURL(ctx, e.URL, *e.FiledAt)
		if out.Filing == nil {
			rep.Failed++
			continue
		}
		if _, err := r.Persist(ctx, out.Filing); err != nil {
			rep.Failed++
			r.log.Error("failed to persist retried filing", zap.String("url", e.URL), zap.Error(err))
			continue
		}
		if _, err := r.store.DeleteErrorURL(ctx, e.URL); err != nil {
			return rep, err
		}
		rep.Recovered++
	}
	r.log.Info("error url retry finished",
		zap.Int("retried", rep.Retried), zap.Int("recovered", rep.Recovered),
		zap.Int("failed", rep.Failed), zap.Int("skipped", rep.Skipped))
	return rep, nil
}

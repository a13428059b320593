package store

import (
	"context"
	"errors"
	"time"

	"github.com/bighogz/insider-trades/internal/models"
)

var ErrNotFound = errors.New("store: not found")

// InsertResult reports what InsertFiling wrote. When Inserted is false the
// filing already existed and none of its transactions were written.
type InsertResult struct {
	Inserted     bool
	Transactions int
	// Collisions counts transactions dropped because their id repeated
	// within the filing.
	Collisions int
}

// Store is the persistence boundary for the ingest and enrich jobs.
type Store interface {
	CompanyExists(ctx context.Context, cik string) (bool, error)
	UpsertCompany(ctx context.Context, c models.Company) error

	InsiderExists(ctx context.Context, cik string) (bool, error)
	GetInsider(ctx context.Context, cik string) (*models.Insider, error)
	UpsertInsider(ctx context.Context, in models.Insider) error
	// UpsertInsiderName creates the insider or refreshes its name, leaving stats alone.
	UpsertInsiderName(ctx context.Context, cik, name string) error
	// UpdateInsiderStats writes all three stats in one statement.
	UpdateInsiderStats(ctx context.Context, cik string, numTrades, numCorrect int, ninetyDayReturn *float64) (*models.Insider, error)
	DeleteInsider(ctx context.Context, cik string) (bool, error)

	FilingExists(ctx context.Context, id string) (bool, error)
	GetFiling(ctx context.Context, id string) (*models.Filing, error)
	InsertFiling(ctx context.Context, f *models.Filing) (InsertResult, error)
	DeleteFiling(ctx context.Context, id string) (bool, error)
	SetFilingPrices(ctx context.Context, filingID string, pricesID int64) error
	FilingsEligibleForPricing(ctx context.Context, before time.Time) ([]models.PricingCandidate, error)

	TransactionExists(ctx context.Context, filingID, id string) (bool, error)

	ErrorURLExists(ctx context.Context, url string) (bool, error)
	InsertErrorURL(ctx context.Context, e models.ErrorURL) (bool, error)
	DeleteErrorURL(ctx context.Context, url string) (bool, error)
	ListErrorURLs(ctx context.Context) ([]models.ErrorURL, error)

	InsertPrices(ctx context.Context, filingID string, p models.StockPrices) (int64, error)

	Close() error
}

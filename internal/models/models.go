package models

import "time"

type Company struct {
	CIK    string  `json:"cik"`
	Name   string  `json:"name"`
	Ticker *string `json:"ticker,omitempty"`
}

// Insider is one reporting owner with its running trade outcome stats.
type Insider struct {
	CIK             string   `json:"cik"`
	Name            string   `json:"name"`
	NumTrades       int      `json:"num_trades"`
	NumCorrect      int      `json:"num_correct"`
	NinetyDayReturn *float64 `json:"ninety_day_return,omitempty"`
}

type Filing struct {
	ID                string    `json:"id"`
	Company           Company   `json:"company"`
	FilingDate        time.Time `json:"filing_date"`
	OwnerName         string    `json:"owner_name"`
	OwnerCIK          string    `json:"owner_cik"`
	IsDirector        bool      `json:"is_director"`
	IsOfficer         bool      `json:"is_officer"`
	IsTenPercentOwner bool      `json:"is_ten_percent_owner"`
	IsOther           bool      `json:"is_other"`
	OwnerTitle        *string   `json:"owner_title,omitempty"`
	Footnotes         []string  `json:"footnotes"`
	URL               string    `json:"url"`
	PricesID          *int64    `json:"prices_id,omitempty"`

	NonDerivative []Transaction `json:"non_derivative_transactions"`
	Derivative    []Transaction `json:"derivative_transactions"`
}

// Transactions returns non-derivative rows followed by derivative rows.
func (f *Filing) Transactions() []Transaction {
	out := make([]Transaction, 0, len(f.NonDerivative)+len(f.Derivative))
	out = append(out, f.NonDerivative...)
	return append(out, f.Derivative...)
}

// ErrorURL is a document that failed fetch or extraction. FiledAt is the
// index timestamp, kept so the document can be retried under the same id.
type ErrorURL struct {
	URL       string     `json:"url"`
	FiledAt   *time.Time `json:"filed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type StockPrices struct {
	Open      *float64 `json:"open"`
	NinetyDay *float64 `json:"90_day"`
}

// PricedOutcome pairs a filing's owner with the prices around the filing date.
type PricedOutcome struct {
	FilingID    string      `json:"filing_id"`
	OwnerCIK    string      `json:"owner_cik"`
	StockPrices StockPrices `json:"stock_prices"`
}

type PricingCandidate struct {
	FilingID   string    `json:"filing_id"`
	OwnerCIK   string    `json:"owner_cik"`
	Ticker     string    `json:"ticker"`
	FilingDate time.Time `json:"filing_date"`
}

type PriceObservation struct {
	Date  time.Time `json:"date"`
	Open  *float64  `json:"open,omitempty"`
	Close *float64  `json:"close,omitempty"`
}

// IndexEntry is one hit from the filing index query.
type IndexEntry struct {
	FiledAt             string  `json:"filedAt"`
	Ticker              *string `json:"ticker,omitempty"`
	LinkToFilingDetails string  `json:"linkToFilingDetails"`
	AccessionNo         string  `json:"accessionNo,omitempty"`
	FormType            string  `json:"formType,omitempty"`
}

package models

import "time"

type TransactionKind string

const (
	KindNonDerivative TransactionKind = "non-derivative"
	KindDerivative    TransactionKind = "derivative"
)

type NonDerivativeDetail struct {
	ExecutionDate *time.Time `json:"execution_date,omitempty"`
}

type DerivativeDetail struct {
	ExercisePrice               *float64   `json:"exercise_price,omitempty"`
	ExerciseDate                *time.Time `json:"exercise_date,omitempty"`
	ExpirationDate              *time.Time `json:"expiration_date,omitempty"`
	UnderlyingSecurityType      *string    `json:"underlying_security_type,omitempty"`
	UnderlyingSecurityNumShares *float64   `json:"underlying_security_num_shares,omitempty"`
}

// Transaction is one row of a filing's non-derivative or derivative table.
// Exactly one of NonDerivative and Derivative is set, matching Kind.
type Transaction struct {
	ID                        string          `json:"id"`
	Kind                      TransactionKind `json:"transaction_type"`
	Date                      *time.Time      `json:"date,omitempty"`
	SecurityType              *string         `json:"security_type,omitempty"`
	Code                      *string         `json:"code,omitempty"`
	NumShares                 *float64        `json:"num_shares,omitempty"`
	SharePrice                *float64        `json:"share_price,omitempty"`
	NumSharesAfter            *float64        `json:"num_shares_after,omitempty"`
	AcquiredDisposedCode      *string         `json:"acquired_disposed_code,omitempty"`
	DirectOrIndirectOwnership *string         `json:"direct_or_indirect_ownership,omitempty"`
	Footnotes                 []string        `json:"footnotes"`
	FilingID                  string          `json:"filing_id"`

	NonDerivative *NonDerivativeDetail `json:"non_derivative,omitempty"`
	Derivative    *DerivativeDetail    `json:"derivative,omitempty"`
}

// TransactionRow is the flat persisted shape. Columns that belong to the
// other variant are always nil so one batch insert has uniform columns.
type TransactionRow struct {
	ID                          string
	FilingID                    string
	Kind                        TransactionKind
	Date                        *time.Time
	SecurityType                *string
	Code                        *string
	NumShares                   *float64
	SharePrice                  *float64
	NumSharesAfter              *float64
	AcquiredDisposedCode        *string
	DirectOrIndirectOwnership   *string
	Footnotes                   []string
	ExecutionDate               *time.Time
	ExercisePrice               *float64
	ExerciseDate                *time.Time
	ExpirationDate              *time.Time
	UnderlyingSecurityType      *string
	UnderlyingSecurityNumShares *float64
}

func (t Transaction) Row() TransactionRow {
	r := TransactionRow{
		ID:                        t.ID,
		FilingID:                  t.FilingID,
		Kind:                      t.Kind,
		Date:                      t.Date,
		SecurityType:              t.SecurityType,
		Code:                      t.Code,
		NumShares:                 t.NumShares,
		SharePrice:                t.SharePrice,
		NumSharesAfter:            t.NumSharesAfter,
		AcquiredDisposedCode:      t.AcquiredDisposedCode,
		DirectOrIndirectOwnership: t.DirectOrIndirectOwnership,
		Footnotes:                 t.Footnotes,
	}
	switch t.Kind {
	case KindNonDerivative:
		if t.NonDerivative != nil {
			r.ExecutionDate = t.NonDerivative.ExecutionDate
		}
	case KindDerivative:
		if d := t.Derivative; d != nil {
			r.ExercisePrice = d.ExercisePrice
			r.ExerciseDate = d.ExerciseDate
			r.ExpirationDate = d.ExpirationDate
			r.UnderlyingSecurityType = d.UnderlyingSecurityType
			r.UnderlyingSecurityNumShares = d.UnderlyingSecurityNumShares
		}
	}
	return r
}

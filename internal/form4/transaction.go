package form4

import (
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/models"
)

// Parser turns Form 4 documents into filings. It only logs; it holds no state.
type Parser struct {
	log *zap.Logger
}

func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log}
}

// NonDerivative builds one nonDerivativeTransaction row.
func (p *Parser) NonDerivative(n *xmlquery.Node, footnotes map[string]string, filingID string) (models.Transaction, error) {
	tx, err := p.parseBase(n, footnotes, filingID)
	if err != nil {
		return models.Transaction{}, err
	}
	tx.Kind = models.KindNonDerivative
	tx.NonDerivative = &models.NonDerivativeDetail{
		ExecutionDate: p.optionalDate(n, "deemedexecutiondate/value"),
	}
	return tx, nil
}

// Derivative builds one derivativeTransaction row.
func (p *Parser) Derivative(n *xmlquery.Node, footnotes map[string]string, filingID string) (models.Transaction, error) {
	tx, err := p.parseBase(n, footnotes, filingID)
	if err != nil {
		return models.Transaction{}, err
	}
	exercisePrice, err := float(n, "conversionorexerciseprice/value")
	if err != nil {
		return models.Transaction{}, err
	}
	underlyingShares, err := float(n, "underlyingsecurity/underlyingsecurityshares/value")
	if err != nil {
		return models.Transaction{}, err
	}
	if underlyingShares == nil {
		if underlyingShares, err = float(n, "underlyingsecurityshares/value"); err != nil {
			return models.Transaction{}, err
		}
	}
	tx.Kind = models.KindDerivative
	tx.Derivative = &models.DerivativeDetail{
		ExercisePrice:               exercisePrice,
		ExerciseDate:                p.optionalDate(n, "exercisedate/value"),
		ExpirationDate:              p.optionalDate(n, "expirationdate/value"),
		UnderlyingSecurityType:      text(n, "underlyingsecurity/underlyingsecuritytitle/value"),
		UnderlyingSecurityNumShares: underlyingShares,
	}
	return tx, nil
}

// parseBase extracts the fields both table kinds share.
func (p *Parser) parseBase(n *xmlquery.Node, footnotes map[string]string, filingID string) (models.Transaction, error) {
	dateNode := find(n, "transactiondate/value")
	if dateNode == nil {
		return models.Transaction{}, missing("transactiondate/value")
	}
	var date *Date
	if d, ok := ParseDate(dateNode.InnerText()); ok {
		date = &d
	} else {
		p.log.Warn("unparseable transaction date",
			zap.String("filing_id", filingID),
			zap.String("value", dateNode.InnerText()))
	}

	numShares, err := float(n, "transactionamounts/transactionshares/value")
	if err != nil {
		return models.Transaction{}, err
	}
	sharePrice, err := float(n, "transactionamounts/transactionpricepershare/value")
	if err != nil {
		return models.Transaction{}, err
	}
	numSharesAfter, err := float(n, "posttransactionamounts/sharesownedfollowingtransaction/value")
	if err != nil {
		return models.Transaction{}, err
	}

	notes, err := resolveFootnotes(n, footnotes)
	if err != nil {
		return models.Transaction{}, err
	}

	tx := models.Transaction{
		ID:                        TransactionID(date, numShares, numSharesAfter),
		SecurityType:              text(n, "securitytitle/value"),
		Code:                      text(n, "transactioncoding/transactioncode"),
		NumShares:                 numShares,
		SharePrice:                sharePrice,
		NumSharesAfter:            numSharesAfter,
		AcquiredDisposedCode:      text(n, "transactionamounts/transactionacquireddisposedcode/value"),
		DirectOrIndirectOwnership: text(n, "ownershipnature/directorindirectownership"),
		Footnotes:                 notes,
		FilingID:                  filingID,
	}
	if date != nil {
		t := date.Time
		tx.Date = &t
	}
	return tx, nil
}

func (p *Parser) optionalDate(n *xmlquery.Node, expr string) *time.Time {
	s := text(n, expr)
	if s == nil || *s == "" {
		return nil
	}
	d, ok := ParseDate(*s)
	if !ok {
		p.log.Debug("unparseable optional date", zap.String("path", expr), zap.String("value", *s))
		return nil
	}
	return &d.Time
}

// resolveFootnotes maps every footnoteId under n to its text, in document order.
func resolveFootnotes(n *xmlquery.Node, footnotes map[string]string) ([]string, error) {
	refs := findAll(n, ".//footnoteid")
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		id := ref.SelectAttr("id")
		note, ok := footnotes[id]
		if !ok {
			return nil, &StructuralParseError{Path: "footnoteid[@id=" + id + "]", Reason: "unknown footnote"}
		}
		out = append(out, note)
	}
	return out, nil
}

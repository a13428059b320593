package form4

import (
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/samber/lo"

	"github.com/bighogz/insider-trades/internal/models"
)

// Filing parses a raw Form 4 document. filedAt comes from the index entry,
// not the document body.
func (p *Parser) Filing(raw []byte, filedAt time.Time, url string) (*models.Filing, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}
	return p.FilingFromNode(doc, filedAt, url)
}

// FilingFromNode builds the filing aggregate from a lower-cased document tree.
// Only the first reportingOwner is read; multi-owner filings are treated as
// the first (institutional) filer.
func (p *Parser) FilingFromNode(doc *xmlquery.Node, filedAt time.Time, url string) (*models.Filing, error) {
	issuer := find(doc, "//issuer")
	if issuer == nil {
		return nil, missing("issuer")
	}
	cik := text(issuer, "issuercik")
	if cik == nil || *cik == "" {
		return nil, missing("issuer/issuercik")
	}
	company := models.Company{CIK: *cik, Ticker: nonEmpty(text(issuer, "issuertradingsymbol"))}
	if name := text(issuer, "issuername"); name != nil {
		company.Name = *name
	}

	owner := find(doc, "//reportingowner")
	if owner == nil {
		return nil, missing("reportingowner")
	}
	ownerID := find(owner, "reportingownerid")
	if ownerID == nil {
		return nil, missing("reportingowner/reportingownerid")
	}
	ownerCIK := text(ownerID, "rptownercik")
	if ownerCIK == nil || *ownerCIK == "" {
		return nil, missing("reportingownerid/rptownercik")
	}

	f := &models.Filing{
		ID:                FilingID(company.CIK, filedAt, *ownerCIK),
		Company:           company,
		FilingDate:        filedAt,
		OwnerCIK:          *ownerCIK,
		IsDirector:        flag(owner, "reportingownerrelationship/isdirector"),
		IsOfficer:         flag(owner, "reportingownerrelationship/isofficer"),
		IsTenPercentOwner: flag(owner, "reportingownerrelationship/istenpercentowner"),
		IsOther:           flag(owner, "reportingownerrelationship/isother"),
		OwnerTitle:        nonEmpty(text(owner, "reportingownerrelationship/officertitle")),
		URL:               url,
	}
	if name := text(ownerID, "rptownername"); name != nil {
		f.OwnerName = *name
	}

	noteNodes := findAll(find(doc, "//footnotes"), "footnote")
	table := make(map[string]string, len(noteNodes))
	f.Footnotes = lo.Map(noteNodes, func(n *xmlquery.Node, _ int) string {
		s := strings.TrimSpace(n.InnerText())
		table[n.SelectAttr("id")] = s
		return s
	})

	f.NonDerivative = make([]models.Transaction, 0)
	for _, n := range findAll(find(doc, "//nonderivativetable"), "nonderivativetransaction") {
		tx, err := p.NonDerivative(n, table, f.ID)
		if err != nil {
			return nil, err
		}
		f.NonDerivative = append(f.NonDerivative, tx)
	}

	f.Derivative = make([]models.Transaction, 0)
	for _, n := range findAll(find(doc, "//derivativetable"), "derivativetransaction") {
		tx, err := p.Derivative(n, table, f.ID)
		if err != nil {
			return nil, err
		}
		f.Derivative = append(f.Derivative, tx)
	}
	return f, nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

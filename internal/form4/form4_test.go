package form4

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bighogz/insider-trades/internal/models"
)

var sampleFiledAt = time.Date(2022, 1, 13, 16, 5, 31, 0, time.FixedZone("EST", -5*3600))

func loadSample(t *testing.T) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/form4_sample.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return raw
}

func parseSample(t *testing.T) *models.Filing {
	t.Helper()
	f, err := NewParser(nil).Filing(loadSample(t), sampleFiledAt, "https://www.sec.gov/doc4.xml")
	if err != nil {
		t.Fatalf("Filing: %v", err)
	}
	return f
}

func TestFilingIdentityIsDeterministic(t *testing.T) {
	a := parseSample(t)
	b := parseSample(t)
	want := "0000320193" + "2022-01-13T16:05:31-05:00" + "0001214128"
	if a.ID != want {
		t.Fatalf("id=%q want %q", a.ID, want)
	}
	if a.ID != b.ID || a.Company.CIK != b.Company.CIK {
		t.Fatalf("ids differ across runs: %q vs %q", a.ID, b.ID)
	}
	for _, tx := range a.Transactions() {
		if tx.FilingID != a.ID {
			t.Fatalf("transaction %q filing_id=%q want %q", tx.ID, tx.FilingID, a.ID)
		}
	}
}

func TestFilingOwnerAndCompany(t *testing.T) {
	f := parseSample(t)
	if f.Company.Name != "Apple Inc." || f.Company.Ticker == nil || *f.Company.Ticker != "AAPL" {
		t.Fatalf("company=%+v", f.Company)
	}
	if f.OwnerCIK != "0001214128" || f.OwnerName != "LEVINSON ARTHUR D" {
		t.Fatalf("owner=%q %q, want first reporting owner", f.OwnerCIK, f.OwnerName)
	}
	if !f.IsDirector || f.IsOfficer || f.IsTenPercentOwner || f.IsOther {
		t.Fatalf("flags director=%v officer=%v ten=%v other=%v", f.IsDirector, f.IsOfficer, f.IsTenPercentOwner, f.IsOther)
	}
	if f.OwnerTitle == nil || *f.OwnerTitle != "Chair" {
		t.Fatalf("owner_title=%v", f.OwnerTitle)
	}
	want := []string{"No price reported.", "Weighted average sale price."}
	if strings.Join(f.Footnotes, "|") != strings.Join(want, "|") {
		t.Fatalf("footnotes=%v want %v", f.Footnotes, want)
	}
}

func TestTransactionFields(t *testing.T) {
	f := parseSample(t)
	if len(f.NonDerivative) != 2 || len(f.Derivative) != 1 {
		t.Fatalf("got %d non-derivative, %d derivative", len(f.NonDerivative), len(f.Derivative))
	}

	sale := f.NonDerivative[0]
	if sale.ID != "2022-01-11T00:00:00"+"1000.0"+"25000.5" {
		t.Fatalf("id=%q", sale.ID)
	}
	if sale.AcquiredDisposedCode == nil || *sale.AcquiredDisposedCode != "D" {
		t.Fatalf("acquired_disposed_code=%v, want trimmed D", sale.AcquiredDisposedCode)
	}
	if sale.SharePrice == nil || *sale.SharePrice != 172.5 {
		t.Fatalf("share_price=%v", sale.SharePrice)
	}
	if len(sale.Footnotes) != 1 || sale.Footnotes[0] != "Weighted average sale price." {
		t.Fatalf("footnotes=%v", sale.Footnotes)
	}
	exec := sale.NonDerivative.ExecutionDate
	if exec == nil {
		t.Fatal("execution_date not parsed")
	}
	if _, off := exec.Zone(); off != -5*3600 {
		t.Fatalf("execution_date offset=%d", off)
	}

	gift := f.NonDerivative[1]
	if gift.SharePrice != nil {
		t.Fatalf("share_price=%v, want absent", *gift.SharePrice)
	}
	if gift.DirectOrIndirectOwnership == nil || *gift.DirectOrIndirectOwnership != "I" {
		t.Fatalf("direct_or_indirect=%v", gift.DirectOrIndirectOwnership)
	}
	if gift.NonDerivative.ExecutionDate != nil {
		t.Fatalf("execution_date=%v, want absent", gift.NonDerivative.ExecutionDate)
	}

	rsu := f.Derivative[0]
	d := rsu.Derivative
	if rsu.ID != "2022-01-10T00:00:00"+"200.0"+"800.0" {
		t.Fatalf("id=%q", rsu.ID)
	}
	if d.ExercisePrice != nil {
		t.Fatalf("exercise_price=%v, want absent", *d.ExercisePrice)
	}
	if d.UnderlyingSecurityNumShares == nil || *d.UnderlyingSecurityNumShares != 200 {
		t.Fatalf("underlying shares=%v", d.UnderlyingSecurityNumShares)
	}
	if d.UnderlyingSecurityType == nil || *d.UnderlyingSecurityType != "Common Stock" {
		t.Fatalf("underlying type=%v", d.UnderlyingSecurityType)
	}
	if d.ExpirationDate == nil || d.ExpirationDate.Year() != 2025 {
		t.Fatalf("expiration=%v", d.ExpirationDate)
	}
}

func TestVariantCompleteness(t *testing.T) {
	f := parseSample(t)
	for _, tx := range f.Transactions() {
		switch tx.Kind {
		case models.KindNonDerivative:
			if tx.NonDerivative == nil || tx.Derivative != nil {
				t.Fatalf("%s: wrong payload", tx.ID)
			}
		case models.KindDerivative:
			if tx.Derivative == nil || tx.NonDerivative != nil {
				t.Fatalf("%s: wrong payload", tx.ID)
			}
		default:
			t.Fatalf("%s: kind=%q", tx.ID, tx.Kind)
		}
		row := tx.Row()
		if tx.Kind == models.KindNonDerivative {
			if row.ExercisePrice != nil || row.ExerciseDate != nil || row.ExpirationDate != nil ||
				row.UnderlyingSecurityType != nil || row.UnderlyingSecurityNumShares != nil {
				t.Fatalf("%s: derivative columns set on non-derivative row", tx.ID)
			}
		} else if row.ExecutionDate != nil {
			t.Fatalf("%s: execution_date set on derivative row", tx.ID)
		}
	}
}

func relationshipDoc(director string) []byte {
	rel := ""
	if director != "-" {
		rel = "<isDirector>" + director + "</isDirector>"
	}
	return []byte(`<ownershipDocument>
<issuer><issuerCik>1</issuerCik></issuer>
<reportingOwner>
  <reportingOwnerId><rptOwnerCik>2</rptOwnerCik><rptOwnerName>X</rptOwnerName></reportingOwnerId>
  <reportingOwnerRelationship>` + rel + `</reportingOwnerRelationship>
</reportingOwner>
</ownershipDocument>`)
}

func TestRoleFlagStrictness(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"1", true},
		{"0", false},
		{"true", false},
		{" 1", false},
		{"", false},
		{"-", false}, // node missing
	}
	p := NewParser(nil)
	for _, c := range cases {
		f, err := p.Filing(relationshipDoc(c.text), sampleFiledAt, "u")
		if err != nil {
			t.Fatalf("%q: %v", c.text, err)
		}
		if f.IsDirector != c.want {
			t.Fatalf("isDirector(%q)=%v want %v", c.text, f.IsDirector, c.want)
		}
		if len(f.NonDerivative) != 0 || len(f.Derivative) != 0 || len(f.Footnotes) != 0 {
			t.Fatalf("expected empty tables and footnotes, got %+v", f)
		}
	}
}

func TestParseDateFallback(t *testing.T) {
	cases := []struct {
		in     string
		ok     bool
		zone   bool
		offset int
	}{
		{"2022-02-23", true, false, 0},
		{"2022-02-23-0500", true, true, -5 * 3600},
		{"2022-02-23-05:00", true, true, -5 * 3600},
		{"2022-02-23+05:30", true, true, 5*3600 + 1800},
		{"2022-02-23Z", true, true, 0},
		{"02/23/2022", false, false, 0},
		{"", false, false, 0},
	}
	for _, c := range cases {
		d, ok := ParseDate(c.in)
		if ok != c.ok {
			t.Fatalf("ParseDate(%q) ok=%v want %v", c.in, ok, c.ok)
		}
		if !ok {
			continue
		}
		if d.Zone != c.zone {
			t.Fatalf("ParseDate(%q) zone=%v want %v", c.in, d.Zone, c.zone)
		}
		if _, off := d.Time.Zone(); off != c.offset {
			t.Fatalf("ParseDate(%q) offset=%d want %d", c.in, off, c.offset)
		}
		if d.Time.Day() != 23 {
			t.Fatalf("ParseDate(%q) day=%d", c.in, d.Time.Day())
		}
	}
}

func TestUnparseableTransactionDateIsAbsent(t *testing.T) {
	raw := []byte(`<ownershipDocument>
<issuer><issuerCik>1</issuerCik></issuer>
<reportingOwner><reportingOwnerId><rptOwnerCik>2</rptOwnerCik></reportingOwnerId></reportingOwner>
<nonDerivativeTable><nonDerivativeTransaction>
  <transactionDate><value>sometime in May</value></transactionDate>
  <transactionAmounts><transactionShares><value>10</value></transactionShares></transactionAmounts>
</nonDerivativeTransaction></nonDerivativeTable>
</ownershipDocument>`)
	f, err := NewParser(nil).Filing(raw, sampleFiledAt, "u")
	if err != nil {
		t.Fatalf("Filing: %v", err)
	}
	tx := f.NonDerivative[0]
	if tx.Date != nil {
		t.Fatalf("date=%v, want absent", tx.Date)
	}
	if tx.ID != "10.0None" {
		t.Fatalf("id=%q", tx.ID)
	}
	if tx.NumSharesAfter != nil {
		t.Fatalf("num_shares_after=%v, want absent not zero", *tx.NumSharesAfter)
	}
}

func TestStructuralErrors(t *testing.T) {
	cases := map[string]string{
		"no reporting owner": `<ownershipDocument><issuer><issuerCik>1</issuerCik></issuer></ownershipDocument>`,
		"no issuer cik":      `<ownershipDocument><issuer></issuer><reportingOwner><reportingOwnerId><rptOwnerCik>2</rptOwnerCik></reportingOwnerId></reportingOwner></ownershipDocument>`,
		"no transaction date": `<ownershipDocument><issuer><issuerCik>1</issuerCik></issuer>
<reportingOwner><reportingOwnerId><rptOwnerCik>2</rptOwnerCik></reportingOwnerId></reportingOwner>
<derivativeTable><derivativeTransaction><securityTitle><value>Option</value></securityTitle></derivativeTransaction></derivativeTable>
</ownershipDocument>`,
		"unknown footnote": `<ownershipDocument><issuer><issuerCik>1</issuerCik></issuer>
<reportingOwner><reportingOwnerId><rptOwnerCik>2</rptOwnerCik></reportingOwnerId></reportingOwner>
<nonDerivativeTable><nonDerivativeTransaction><transactionDate><value>2022-01-01</value><footnoteId id="F9"/></transactionDate></nonDerivativeTransaction></nonDerivativeTable>
</ownershipDocument>`,
		"bad number": `<ownershipDocument><issuer><issuerCik>1</issuerCik></issuer>
<reportingOwner><reportingOwnerId><rptOwnerCik>2</rptOwnerCik></reportingOwnerId></reportingOwner>
<nonDerivativeTable><nonDerivativeTransaction><transactionDate><value>2022-01-01</value></transactionDate>
<transactionAmounts><transactionShares><value>1,000</value></transactionShares></transactionAmounts></nonDerivativeTransaction></nonDerivativeTable>
</ownershipDocument>`,
		"not xml": `<ownershipDocument><issuer>`,
	}
	p := NewParser(nil)
	for name, doc := range cases {
		_, err := p.Filing([]byte(doc), sampleFiledAt, "u")
		var spe *StructuralParseError
		if !errors.As(err, &spe) {
			t.Fatalf("%s: err=%v, want StructuralParseError", name, err)
		}
	}
}

func TestWrappedSubmission(t *testing.T) {
	raw := append([]byte("<SEC-DOCUMENT>\n<TYPE>4\n<TEXT>\n<XML>\n"), loadSample(t)...)
	raw = append(raw, []byte("\n</XML>\n</TEXT>\n</SEC-DOCUMENT>")...)
	f, err := NewParser(nil).Filing(raw, sampleFiledAt, "u")
	if err != nil {
		t.Fatalf("Filing: %v", err)
	}
	if len(f.Transactions()) != 3 {
		t.Fatalf("transactions=%d", len(f.Transactions()))
	}
}

func TestFormatFloat(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	cases := []struct {
		in   *float64
		want string
	}{
		{nil, "None"},
		{f(100), "100.0"},
		{f(0), "0.0"},
		{f(0.5), "0.5"},
		{f(1234567.25), "1234567.25"},
		{f(1e16), "1e+16"},
		{f(1.5e-05), "1.5e-05"},
	}
	for _, c := range cases {
		if got := FormatFloat(c.in); got != c.want {
			t.Fatalf("FormatFloat=%q want %q", got, c.want)
		}
	}
}

func looseDoc(issuerName, footnote string) []byte {
	return []byte(`<ownershipDocument>
<issuer><issuerCik>1</issuerCik><issuerName>` + issuerName + `</issuerName></issuer>
<reportingOwner><reportingOwnerId><rptOwnerCik>2</rptOwnerCik><rptOwnerName>X</rptOwnerName></reportingOwnerId></reportingOwner>
<footnotes><footnote id="F1">` + footnote + `</footnote></footnotes>
</ownershipDocument>`)
}

func TestLenientMarkup(t *testing.T) {
	cases := []struct {
		name     string
		doc      []byte
		issuer   string
		footnote string
	}{
		{"bare ampersand", looseDoc("Smith & Wesson Brands, Inc.", "Sold by Smith & Wesson plan."),
			"Smith & Wesson Brands, Inc.", "Sold by Smith & Wesson plan."},
		{"html entity", looseDoc("Acme&nbsp;Corp", "Price&nbsp;range $10.00 to $10.50."),
			"Acme\u00a0Corp", "Price\u00a0range $10.00 to $10.50."},
		{"unclosed br", looseDoc("Acme Corp", "Price range $10.00 to $10.50.<br>Weighted average."),
			"Acme Corp", "Price range $10.00 to $10.50.Weighted average."},
		{"latin-1 declaration", append([]byte(`<?xml version="1.0" encoding="ISO-8859-1"?>`+"\n"), looseDoc("Soci\xe9t\xe9 G\xe9n\xe9rale", "none")...),
			"Société Générale", "none"},
	}
	p := NewParser(nil)
	for _, c := range cases {
		f, err := p.Filing(c.doc, sampleFiledAt, "u")
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if f.Company.Name != c.issuer {
			t.Fatalf("%s: issuer=%q want %q", c.name, f.Company.Name, c.issuer)
		}
		if len(f.Footnotes) != 1 || f.Footnotes[0] != c.footnote {
			t.Fatalf("%s: footnotes=%q want %q", c.name, f.Footnotes, c.footnote)
		}
	}
}

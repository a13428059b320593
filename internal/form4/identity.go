package form4

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// FilingTimeLayout is the offset-qualified ISO form used inside filing ids.
const FilingTimeLayout = "2006-01-02T15:04:05-07:00"

// FilingID derives the filing key from issuer, filing time and owner.
// The same inputs always yield the same id.
func FilingID(companyCIK string, filedAt time.Time, ownerCIK string) string {
	return companyCIK + filedAt.Format(FilingTimeLayout) + ownerCIK
}

// TransactionID derives a transaction key from its date and share counts.
// A missing date contributes nothing and missing counts render as "None".
func TransactionID(date *Date, shares, sharesAfter *float64) string {
	var b strings.Builder
	if date != nil {
		b.WriteString(date.ISO())
	}
	b.WriteString(FormatFloat(shares))
	b.WriteString(FormatFloat(sharesAfter))
	return b.String()
}

// FormatFloat renders f in shortest round-trip form, keeping a trailing
// ".0" on integral values: "100.0", "0.5", "1e+16", "None" for nil.
func FormatFloat(f *float64) string {
	if f == nil {
		return "None"
	}
	v := *f
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	abs := math.Abs(v)
	if v == 0 || (abs >= 1e-4 && abs < 1e16) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.ContainsAny(s, ".") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatFloat(v, 'e', -1, 64)
}

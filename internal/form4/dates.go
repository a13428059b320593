package form4

import (
	"strings"
	"time"
)

// Date layouts seen in Form 4 value fields, tried in order.
var dateLayouts = []struct {
	layout  string
	hasZone bool
}{
	{"2006-01-02", false},
	{"2006-01-02-0700", true},
	{"2006-01-02-07:00", true},
	{"2006-01-02Z07:00", true},
}

// Date is a parsed value date. Zone records whether the text carried an
// offset, which changes how the date is rendered into ids.
type Date struct {
	Time time.Time
	Zone bool
}

// ParseDate returns the first layout match, or false when none matches.
func ParseDate(s string) (Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return Date{Time: t, Zone: l.hasZone}, true
		}
	}
	return Date{}, false
}

// ISO renders d the way the stored ids expect: midnight timestamps with an
// offset only when the source text had one.
func (d Date) ISO() string {
	if d.Zone {
		return d.Time.Format("2006-01-02T15:04:05-07:00")
	}
	return d.Time.Format("2006-01-02T15:04:05")
}

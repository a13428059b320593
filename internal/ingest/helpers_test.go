package ingest

import (
	"testing"
	"time"
)

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func mustFiled(t *testing.T) time.Time {
	t.Helper()
	f, err := time.Parse(time.RFC3339, "2022-01-13T16:05:31-05:00")
	if err != nil {
		t.Fatal(err)
	}
	return f
}

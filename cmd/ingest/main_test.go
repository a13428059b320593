package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bighogz/insider-trades/internal/checkpoint"
)

func TestWindowFlags(t *testing.T) {
	start, end, fromCP, err := window("", "2022-01-10", "2022-01-12")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if fromCP || start.Day() != 10 || end.Day() != 12 {
		t.Fatalf("start=%v end=%v fromCheckpoint=%v", start, end, fromCP)
	}

	start, end, _, err = window("", "2022-01-10", "")
	if err != nil || !start.Equal(end) {
		t.Fatalf("single day: start=%v end=%v err=%v", start, end, err)
	}

	if _, _, _, err := window("", "2022-01-12", "2022-01-10"); err == nil {
		t.Fatal("expected error for reversed range")
	}
	if _, _, _, err := window("", "01/10/2022", ""); err == nil {
		t.Fatal("expected error for bad date")
	}
}

func TestWindowCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local_db.json")
	if _, _, _, err := window(path, "", ""); err == nil {
		t.Fatal("expected error without checkpoint")
	}
	if err := checkpoint.Advance(path, time.Date(2022, 1, 12, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	start, end, fromCP, err := window(path, "", "")
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	want := time.Date(2022, 1, 13, 0, 0, 0, 0, time.UTC)
	if !fromCP || !start.Equal(want) || !end.Equal(want) {
		t.Fatalf("start=%v end=%v fromCheckpoint=%v", start, end, fromCP)
	}
}

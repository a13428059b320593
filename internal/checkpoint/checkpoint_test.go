package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "local_db.json"))
	if !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("err=%v want ErrNoCheckpoint", err)
	}
}

func TestReadLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local_db.json")
	if err := os.WriteFile(path, []byte(`{"prev_start_date_string": "2022-01-13"}`), 0600); err != nil {
		t.Fatal(err)
	}
	s, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	d, err := s.Day()
	if err != nil || d.Format(DateLayout) != "2022-01-13" {
		t.Fatalf("day=%v err=%v", d, err)
	}
}

func TestAdvance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "local_db.json")
	if err := Advance(path, time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	s, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if s.PrevStartDate != "2023-01-01" || s.UpdatedAt == "" {
		t.Fatalf("state=%+v", s)
	}
}

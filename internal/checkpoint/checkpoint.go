package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const DateLayout = "2006-01-02"

var ErrNoCheckpoint = errors.New("checkpoint: no start date recorded")

// State is the on-disk run checkpoint. It survives host restarts so the
// daily job resumes at the first day it has not finished.
type State struct {
	PrevStartDate string `json:"prev_start_date_string"`
	UpdatedAt     string `json:"_updated_at,omitempty"`
}

func Read(path string) (State, error) {
	var s State
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, ErrNoCheckpoint
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	if s.PrevStartDate == "" {
		return s, ErrNoCheckpoint
	}
	return s, nil
}

// Day parses the recorded start date.
func (s State) Day() (time.Time, error) {
	return time.Parse(DateLayout, s.PrevStartDate)
}

func Write(path string, s State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	body, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Advance records the day after done as the next start date.
func Advance(path string, done time.Time) error {
	return Write(path, State{PrevStartDate: done.AddDate(0, 0, 1).Format(DateLayout)})
}

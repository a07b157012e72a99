// Package history keeps JSON reports of past batches on disk. Reports hold
// repository, key and outcome data only; secret values never reach them.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/ghsecrets/internal/update"
)

// EnvHistoryDir overrides the report directory
const EnvHistoryDir = "GHSECRETS_HISTORY_DIR"

// ErrNotFound is returned when no report has the requested ID
var ErrNotFound = errors.New("report not found")

// Entry is one operation in a report
type Entry struct {
	Repository        string `json:"repository"`
	Alias             string `json:"alias,omitempty"`
	SecretKey         string `json:"secret_key"`
	Outcome           string `json:"outcome"`
	ErrorKind         string `json:"error_kind,omitempty"`
	Error             string `json:"error,omitempty"`
	PreviouslyExisted bool   `json:"previously_existed"`
	Attempt           int    `json:"attempt"`
	DurationMs        int64  `json:"duration_ms"`
}

// Totals mirrors update.Summary counters
type Totals struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Report is the record of one batch round
type Report struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id"`
	Round      int       `json:"round"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Aborted    bool      `json:"aborted,omitempty"`
	Totals     Totals    `json:"totals"`
	Entries    []Entry   `json:"entries"`
}

// NewBatchID returns a fresh identifier shared by all rounds of a batch
func NewBatchID() string {
	return uuid.NewString()
}

// NewReport builds a report from the results of one round
func NewReport(batchID string, round int, started, finished time.Time, results []update.OperationResult, aborted bool) *Report {
	summary := update.Fold(results)
	r := &Report{
		ID:         uuid.NewString(),
		BatchID:    batchID,
		Round:      round,
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Aborted:    aborted,
		Totals: Totals{
			Total:      summary.Total,
			Successful: summary.Successful,
			Skipped:    summary.Skipped,
			Failed:     summary.Failed,
		},
		Entries: make([]Entry, 0, len(results)),
	}

	for _, res := range results {
		e := Entry{
			Repository:        res.Repository.Path(),
			Alias:             res.Repository.Alias,
			SecretKey:         res.SecretKey,
			Outcome:           res.Outcome.String(),
			PreviouslyExisted: res.PreviouslyExisted,
			Attempt:           res.Attempt,
			DurationMs:        res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			e.ErrorKind = res.Err.Kind.String()
			e.Error = res.Err.Message
		}
		r.Entries = append(r.Entries, e)
	}
	return r
}

// Store reads and writes reports in a directory
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the report directory
func (s *Store) Dir() string {
	return s.dir
}

// DefaultDir returns the report directory: $GHSECRETS_HISTORY_DIR, else
// $XDG_DATA_HOME/ghsecrets/history, else ~/.local/share/ghsecrets/history.
func DefaultDir() string {
	if dir := os.Getenv(EnvHistoryDir); dir != "" {
		return dir
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "ghsecrets", "history")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "ghsecrets", "history")
	}
	return filepath.Join(os.TempDir(), "ghsecrets", "history")
}

// Save writes r as <started>-r<round>-<id>.json with mode 0600
func (s *Store) Save(r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	filename := filepath.Join(s.dir, fmt.Sprintf("%s-r%03d-%s.json", r.StartedAt.Format("20060102-150405.000000000"), r.Round, r.ID))
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// List returns up to limit reports, newest first. limit <= 0 means all.
// Unreadable files are skipped.
func (s *Store) List(limit int) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Report{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name() > files[j].Name()
	})

	reports := []Report{}
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, file.Name()))
		if err != nil {
			continue
		}
		var r Report
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}
		reports = append(reports, r)
		if limit > 0 && len(reports) >= limit {
			break
		}
	}
	return reports, nil
}

// Get finds a report by ID or batch ID prefix. For a batch ID the latest
// round is returned.
func (s *Store) Get(id string) (*Report, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	reports, err := s.List(0)
	if err != nil {
		return nil, err
	}
	for i := range reports {
		if strings.HasPrefix(reports[i].ID, id) || strings.HasPrefix(reports[i].BatchID, id) {
			return &reports[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Package persistence keeps provisioning run reports in the working
// directory: the latest report under a fixed name, plus a bounded history
// of earlier runs.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	indent     = "    "
	historyDir = "reports"
	stampFmt   = "20060102T150405.000000000"

	// DefaultKeep is the number of reports kept in the history.
	DefaultKeep = 20
)

var ErrNoReport = errors.New("no report")

// ReportStore writes reports atomically. Latest always holds the most recent
// report; each report is also kept as reports/<stamp>-<run id>.json and the
// oldest entries beyond Keep are removed.
type ReportStore struct {
	Dir    string
	Latest string
	Keep   int

	now func() time.Time
}

func NewReportStore(dir, latest string, keep int) *ReportStore {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &ReportStore{Dir: dir, Latest: latest, Keep: keep, now: time.Now}
}

// Path returns the location of the latest report.
func (s *ReportStore) Path() string {
	return filepath.Join(s.Dir, s.Latest)
}

// Save records report for runID and makes it the latest one.
func (s *ReportStore) Save(runID string, report any) error {
	if s.Dir == "" || s.Latest == "" || runID == "" {
		return fmt.Errorf("save report: %w", os.ErrInvalid)
	}
	data, err := json.MarshalIndent(report, "", indent)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", runID, err)
	}

	hist := filepath.Join(s.Dir, historyDir)
	if err := os.MkdirAll(hist, 0755); err != nil {
		return fmt.Errorf("save report %s: %w", runID, err)
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	name := now().UTC().Format(stampFmt) + "-" + runID + ".json"
	if err := writeAtomic(filepath.Join(hist, name), data); err != nil {
		return fmt.Errorf("save report %s: %w", runID, err)
	}
	if err := writeAtomic(s.Path(), data); err != nil {
		return fmt.Errorf("save report %s: %w", runID, err)
	}
	return s.prune()
}

// Load decodes the report of runID into out. An empty runID loads the latest.
func (s *ReportStore) Load(runID string, out any) error {
	path := s.Path()
	if runID != "" {
		matches, err := filepath.Glob(filepath.Join(s.Dir, historyDir, "*-"+runID+".json"))
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("%w for run %s", ErrNoReport, runID)
		}
		path = matches[0]
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w at %s", ErrNoReport, path)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode report %s: %w", path, err)
	}
	return nil
}

// History returns the run ids of the kept reports, oldest first.
func (s *ReportStore) History() ([]string, error) {
	names, err := s.entries()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	for _, n := range names {
		stem := strings.TrimSuffix(n, ".json")
		if i := strings.IndexByte(stem, '-'); i >= 0 {
			ids = append(ids, stem[i+1:])
		}
	}
	return ids, nil
}

func (s *ReportStore) entries() ([]string, error) {
	dirents, err := os.ReadDir(filepath.Join(s.Dir, historyDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, d := range dirents {
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			names = append(names, d.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *ReportStore) prune() error {
	names, err := s.entries()
	if err != nil {
		return err
	}
	for len(names) > s.Keep {
		if err := os.Remove(filepath.Join(s.Dir, historyDir, names[0])); err != nil {
			return fmt.Errorf("prune report history: %w", err)
		}
		names = names[1:]
	}
	return nil
}

// writeAtomic replaces path through a temporary sibling.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

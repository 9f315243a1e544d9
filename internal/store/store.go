// Package store persists one JSON batch document per target date under
// <root>/<YYYY-MM>/<YYYY-MM-DD>.json.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

// Store reads and writes per-date batch files under a root directory.
type Store struct {
	root string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Path returns the batch file path for a date.
func (s *Store) Path(date time.Time) string {
	return filepath.Join(s.root, date.Format("2006-01"), date.Format("2006-01-02")+".json")
}

// SelectedPath returns the path of the optional manually curated selection
// file for a date.
func (s *Store) SelectedPath(date time.Time) string {
	return filepath.Join(s.root, date.Format("2006-01"), date.Format("2006-01-02")+"_selected.json")
}

// ReportPath returns the report output path for a date and extension
// ("md" or "html").
func (s *Store) ReportPath(date time.Time, ext string) string {
	return filepath.Join(s.root, date.Format("2006-01"), date.Format("2006-01-02")+"_report."+ext)
}

// Exists reports whether a batch file has been persisted for the date.
func (s *Store) Exists(date time.Time) bool {
	_, err := os.Stat(s.Path(date))
	return err == nil
}

// Load reads the batch persisted for a date.
func (s *Store) Load(date time.Time) (paper.Batch, error) {
	data, err := os.ReadFile(s.Path(date))
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}

	var batch paper.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}
	return batch, nil
}

// Save writes the batch for a date. The write is atomic: the document goes to
// a temporary file in the same directory and is renamed into place, so a
// crash mid-write leaves any earlier snapshot intact and readable.
func (s *Store) Save(date time.Time, batch paper.Batch) error {
	path := s.Path(date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	// CreateTemp defaults to 0600; batch files are read by external tooling
	// like the report files, so widen to match.
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("setting batch file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing batch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing batch file: %w", err)
	}
	return nil
}

// LoadSelected reads the optional curation file for a date and returns the
// set of selected pdf_url values. A missing file returns (nil, nil): no
// curation means every record is forwarded.
func (s *Store) LoadSelected(date time.Time) (map[string]struct{}, error) {
	data, err := os.ReadFile(s.SelectedPath(date))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading selection file: %w", err)
	}

	var entries []struct {
		PDFURL string `json:"pdf_url"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing selection file: %w", err)
	}

	selected := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.PDFURL != "" {
			selected[e.PDFURL] = struct{}{}
		}
	}
	return selected, nil
}

// FilterSelected returns the records whose pdf_url is in the selection. A nil
// selection passes everything through.
func FilterSelected(records []paper.Record, selected map[string]struct{}) []paper.Record {
	if selected == nil {
		return records
	}
	var out []paper.Record
	for _, r := range records {
		if _, ok := selected[r.PDFURL]; ok {
			out = append(out, r)
		}
	}
	return out
}

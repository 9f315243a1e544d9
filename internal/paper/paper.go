package paper

import (
	"log"
	"time"
)

// ArchiveZone is the timezone the arXiv announcement calendar is pinned to.
// The daily cutover happens at a fixed US east coast wall-clock time and does
// not track daylight saving, so a fixed offset is used instead of a location.
var ArchiveZone = time.FixedZone("EST", -5*60*60)

// Record is the canonical representation of one paper after normalization.
// Timestamps are stored in ArchiveZone and marshal to RFC3339 strings; all
// persisted output is text-only.
type Record struct {
	ID              string    `json:"paper_id"`
	URL             string    `json:"url"`
	PDFURL          string    `json:"pdf_url"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	Authors         []string  `json:"authors"`
	Published       time.Time `json:"published"`
	Updated         time.Time `json:"updated"`
	PrimaryCategory string    `json:"primary_category"`
	Categories      []string  `json:"categories"`
	DOI             string    `json:"doi,omitempty"`
	JournalRef      string    `json:"journal_ref,omitempty"`
	Comments        string    `json:"comments,omitempty"`

	// Set by the summarizer, never mutated afterwards.
	TLDR        string   `json:"tldr,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Classifiers []string `json:"classifiers,omitempty"`
}

// Normalize pins both timestamps to ArchiveZone and reports (without
// rejecting) records that violate the updated >= published invariant or
// arrive with an empty abstract.
func (r *Record) Normalize() {
	r.Published = r.Published.In(ArchiveZone)
	r.Updated = r.Updated.In(ArchiveZone)

	if r.Updated.Before(r.Published) {
		log.Printf("Paper %s: updated %s precedes published %s", r.ID, r.Updated.Format(time.RFC3339), r.Published.Format(time.RFC3339))
	}
	if r.Abstract == "" {
		log.Printf("Paper %s: empty abstract after normalization", r.ID)
	}
}

// PrimaryClassifier returns the first classifier, or "" if none was assigned.
func (r *Record) PrimaryClassifier() string {
	if len(r.Classifiers) == 0 {
		return ""
	}
	return r.Classifiers[0]
}

// Batch maps category names to the records retrieved for them in one run.
// Slice order within a category is retrieval order (newest update first) and
// is meaningful downstream; category iteration order is supplied by the
// caller's configured category list.
type Batch map[string][]Record

// Count returns the total number of records across all categories.
func (b Batch) Count() int {
	n := 0
	for _, records := range b {
		n += len(records)
	}
	return n
}

// IDs returns the set of paper IDs present in the batch.
func (b Batch) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, b.Count())
	for _, records := range b {
		for _, r := range records {
			ids[r.ID] = struct{}{}
		}
	}
	return ids
}

// Flatten returns all records as one slice, walking categories in the given
// order and preserving retrieval order within each category. Categories not
// listed in order are skipped.
func (b Batch) Flatten(order []string) []Record {
	var all []Record
	for _, category := range order {
		all = append(all, b[category]...)
	}
	return all
}

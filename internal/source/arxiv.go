package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/paper"
	"github.com/arxivdigest/arxivdigest/internal/window"
)

const defaultAPIBaseURL = "https://export.arxiv.org/api/query"

// apiPageSize is the number of entries requested per API call. The feed is
// logically unbounded; the window scan usually terminates well before
// maxResults is reached.
const apiPageSize = 100

// APISource fetches papers from the arXiv Atom search API, sorted by most
// recently updated descending. Because the stream is monotonically
// non-increasing in updated time, scanning a category stops as soon as an
// entry's updated timestamp falls at or before the window start.
type APISource struct {
	BaseURL    string
	client     *http.Client
	win        window.Window
	requested  map[string]bool
	maxResults int
}

// NewAPISource creates an API source bounded by the given window. Records
// whose primary category is outside categories are dropped as cross-listed
// noise without stopping the scan.
func NewAPISource(win window.Window, categories []string, maxResults int) *APISource {
	return &APISource{
		BaseURL:    defaultAPIBaseURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		win:        win,
		requested:  requestedSet(categories),
		maxResults: maxResults,
	}
}

// Name identifies the adapter in logs and run metadata.
func (s *APISource) Name() string { return "arxiv-api" }

// FetchCategory pages through the descending-updated feed for one category
// and returns the records that qualify for the window.
func (s *APISource) FetchCategory(ctx context.Context, category string) ([]paper.Record, error) {
	var records []paper.Record

	for start := 0; start < s.maxResults; start += apiPageSize {
		feed, err := s.fetchPage(ctx, "cat:"+category, start, apiPageSize)
		if err != nil {
			return nil, err
		}

		for _, entry := range feed.Entries {
			rec, err := recordFromEntry(entry)
			if err != nil {
				// A zero timestamp from a bad entry must not masquerade as
				// the crossed window floor below.
				log.Printf("Skipping malformed entry in %s: %v", category, err)
				continue
			}
			rec.Normalize()

			// Feed is sorted by updated descending: once the window floor
			// is crossed, nothing further in this category can qualify.
			if !rec.Updated.After(s.win.Start) {
				return records, nil
			}
			// Dropped but the scan continues; a recently updated paper may
			// still be followed by ones published inside the window.
			if !rec.Published.After(s.win.Start) {
				log.Printf("Skipping paper %s: published %s before window start", rec.ID, rec.Published.Format(time.RFC3339))
				continue
			}
			if !s.requested[rec.PrimaryCategory] {
				log.Printf("Skipping paper %s: primary category %s not requested", rec.ID, rec.PrimaryCategory)
				continue
			}
			records = append(records, rec)
		}

		if len(feed.Entries) < apiPageSize {
			break
		}
	}

	return records, nil
}

// Lookup queries the API for a single paper by arXiv ID or by exact title.
func (s *APISource) Lookup(ctx context.Context, query string) (*paper.Record, error) {
	searchQuery := fmt.Sprintf("ti:%q", query)
	if looksLikeID(query) {
		searchQuery = "id:" + query
	}

	feed, err := s.fetchPage(ctx, searchQuery, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(feed.Entries) == 0 {
		return nil, fmt.Errorf("no paper found for query %q", query)
	}

	rec, err := recordFromEntry(feed.Entries[0])
	if err != nil {
		return nil, err
	}
	rec.Normalize()
	return &rec, nil
}

func (s *APISource) fetchPage(ctx context.Context, query string, start, count int) (*atomFeed, error) {
	params := url.Values{
		"search_query": {query},
		"start":        {fmt.Sprintf("%d", start)},
		"max_results":  {fmt.Sprintf("%d", count)},
		"sortBy":       {"lastUpdatedDate"},
		"sortOrder":    {"descending"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv API returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parsing atom feed: %w", err)
	}
	return &feed, nil
}

// Atom feed structures for the arXiv API. The arxiv: extension elements
// (comment, journal_ref, doi, primary_category) match by local name.

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Authors         []atomAuthor   `xml:"author"`
	Categories      []atomCategory `xml:"category"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
	Links           []atomLink     `xml:"link"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Comment         string         `xml:"comment"`
	JournalRef      string         `xml:"journal_ref"`
	DOI             string         `xml:"doi"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Rel   string `xml:"rel,attr"`
}

// recordFromEntry maps one Atom entry to a canonical record. An entry whose
// timestamps fail to parse is rejected; the caller decides whether to skip it.
func recordFromEntry(entry atomEntry) (paper.Record, error) {
	published, err := time.Parse(time.RFC3339, entry.Published)
	if err != nil {
		return paper.Record{}, fmt.Errorf("entry %s: parsing published %q: %w", entry.ID, entry.Published, err)
	}
	updated, err := time.Parse(time.RFC3339, entry.Updated)
	if err != nil {
		return paper.Record{}, fmt.Errorf("entry %s: parsing updated %q: %w", entry.ID, entry.Updated, err)
	}

	rec := paper.Record{
		ID:              shortID(entry.ID),
		URL:             entry.ID,
		Title:           strings.TrimSpace(entry.Title),
		Abstract:        strings.TrimSpace(entry.Summary),
		PrimaryCategory: entry.PrimaryCategory.Term,
		Comments:        strings.TrimSpace(entry.Comment),
		JournalRef:      strings.TrimSpace(entry.JournalRef),
		DOI:             strings.TrimSpace(entry.DOI),
	}

	for _, a := range entry.Authors {
		rec.Authors = append(rec.Authors, a.Name)
	}
	for _, c := range entry.Categories {
		rec.Categories = append(rec.Categories, c.Term)
	}
	if rec.PrimaryCategory == "" && len(rec.Categories) > 0 {
		rec.PrimaryCategory = rec.Categories[0]
	}

	for _, l := range entry.Links {
		if l.Title == "pdf" {
			rec.PDFURL = l.Href
			break
		}
	}
	if rec.PDFURL == "" && rec.ID != "" {
		rec.PDFURL = "https://arxiv.org/pdf/" + rec.ID
	}

	rec.Published = published
	rec.Updated = updated
	return rec, nil
}

// shortID extracts the short identifier from an abs URL, keeping the version
// suffix (e.g. http://arxiv.org/abs/2401.00001v2 -> 2401.00001v2).
func shortID(entryID string) string {
	if idx := strings.LastIndex(entryID, "/abs/"); idx >= 0 {
		return entryID[idx+len("/abs/"):]
	}
	return entryID
}

// looksLikeID reports whether a lookup query is an arXiv identifier rather
// than a title (e.g. "2401.00001" or "hep-th/9901001").
func looksLikeID(query string) bool {
	if strings.Count(query, ".") == 1 {
		parts := strings.SplitN(query, ".", 2)
		num := parts[1]
		if v := strings.IndexByte(num, 'v'); v > 0 {
			num = num[:v]
		}
		return isDigits(parts[0]) && isDigits(num)
	}
	return strings.Contains(query, "/") && !strings.Contains(query, " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/paper"
	"github.com/arxivdigest/arxivdigest/internal/window"
)

// testWindow spans Thursday 10:00 to Friday 14:00 in the archive zone.
var testWindow = window.Window{
	Start: time.Date(2026, time.January, 1, 10, 0, 0, 0, paper.ArchiveZone),
	End:   time.Date(2026, time.January, 2, 14, 0, 0, 0, paper.ArchiveZone),
}

func atomEntryXML(id, primary string, published, updated time.Time) string {
	return fmt.Sprintf(`<entry>
	<id>http://arxiv.org/abs/%s</id>
	<title>Paper %s</title>
	<summary>An abstract.</summary>
	<author><name>A. Author</name></author>
	<arxiv:primary_category xmlns:arxiv="http://arxiv.org/schemas/atom" term="%s"/>
	<category term="%s"/>
	<link href="http://arxiv.org/pdf/%s" title="pdf" rel="related"/>
	<published>%s</published>
	<updated>%s</updated>
</entry>`, id, id, primary, primary, id,
		published.UTC().Format(time.RFC3339), updated.UTC().Format(time.RFC3339))
}

func atomFeedXML(entries ...string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
` + strings.Join(entries, "\n") + `
</feed>`
}

func newAPITestServer(t *testing.T, body string) *APISource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("start") != "0" {
			// Only the first page carries entries in these tests.
			fmt.Fprint(w, atomFeedXML())
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	src := NewAPISource(testWindow, []string{"cs.AI", "cs.CV"}, 200)
	src.BaseURL = srv.URL
	return src
}

func TestFetchCategoryStopsAtWindowFloor(t *testing.T) {
	inWindow := testWindow.Start.Add(2 * time.Hour)
	body := atomFeedXML(
		atomEntryXML("2601.00001v1", "cs.AI", inWindow, inWindow),
		// Updated recently but first published before the window: dropped,
		// scan continues.
		atomEntryXML("2512.00002v3", "cs.AI", testWindow.Start.Add(-48*time.Hour), inWindow.Add(-time.Minute)),
		// Cross-listed: primary category was not requested.
		atomEntryXML("2601.00003v1", "cs.RO", inWindow, inWindow.Add(-2*time.Minute)),
		atomEntryXML("2601.00004v1", "cs.AI", inWindow, inWindow.Add(-3*time.Minute)),
		// Updated at the window floor: terminates the scan.
		atomEntryXML("2512.00005v1", "cs.AI", testWindow.Start, testWindow.Start),
		// Must never be reached.
		atomEntryXML("2601.00006v1", "cs.AI", inWindow, testWindow.Start.Add(-time.Hour)),
	)
	src := newAPITestServer(t, body)

	records, err := src.FetchCategory(context.Background(), "cs.AI")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	want := []string{"2601.00001v1", "2601.00004v1"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestFetchCategorySkipsUnparseableTimestamps(t *testing.T) {
	inWindow := testWindow.Start.Add(2 * time.Hour)
	// The first entry carries a garbage updated timestamp. It must be
	// skipped outright, not treated as a crossed window floor ending the
	// scan before the valid entries behind it.
	badEntry := `<entry>
	<id>http://arxiv.org/abs/2601.00099v1</id>
	<title>Broken Entry</title>
	<summary>An abstract.</summary>
	<arxiv:primary_category xmlns:arxiv="http://arxiv.org/schemas/atom" term="cs.AI"/>
	<published>2026-01-01T15:00:00Z</published>
	<updated>not-a-timestamp</updated>
</entry>`
	src := newAPITestServer(t, atomFeedXML(
		badEntry,
		atomEntryXML("2601.00100v1", "cs.AI", inWindow, inWindow),
		atomEntryXML("2601.00101v1", "cs.AI", inWindow, inWindow.Add(-time.Minute)),
	))

	records, err := src.FetchCategory(context.Background(), "cs.AI")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("valid in-window records after the malformed entry were dropped: got %d records, want 2", len(records))
	}
	if records[0].ID != "2601.00100v1" || records[1].ID != "2601.00101v1" {
		t.Errorf("unexpected records: %v, %v", records[0].ID, records[1].ID)
	}
}

func TestLookupUnparseableTimestamps(t *testing.T) {
	src := newAPITestServer(t, atomFeedXML(`<entry>
	<id>http://arxiv.org/abs/2601.00099v1</id>
	<title>Broken Entry</title>
	<published>garbage</published>
	<updated>garbage</updated>
</entry>`))

	if _, err := src.Lookup(context.Background(), "2601.00099"); err == nil {
		t.Error("expected error for entry with unparseable timestamps")
	}
}

func TestFetchCategoryMapsEntryFields(t *testing.T) {
	inWindow := testWindow.Start.Add(90 * time.Minute)
	src := newAPITestServer(t, atomFeedXML(
		atomEntryXML("2601.01000v2", "cs.AI", inWindow, inWindow),
	))

	records, err := src.FetchCategory(context.Background(), "cs.AI")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	r := records[0]
	if r.ID != "2601.01000v2" {
		t.Errorf("id = %q", r.ID)
	}
	if r.URL != "http://arxiv.org/abs/2601.01000v2" {
		t.Errorf("url = %q", r.URL)
	}
	if r.PDFURL != "http://arxiv.org/pdf/2601.01000v2" {
		t.Errorf("pdf url = %q", r.PDFURL)
	}
	if r.PrimaryCategory != "cs.AI" {
		t.Errorf("primary = %q", r.PrimaryCategory)
	}
	if len(r.Authors) != 1 || r.Authors[0] != "A. Author" {
		t.Errorf("authors = %v", r.Authors)
	}
	if loc := r.Updated.Location(); loc != paper.ArchiveZone {
		t.Errorf("updated not normalized into archive zone: %v", loc)
	}
}

func TestFetchCategoryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewAPISource(testWindow, []string{"cs.AI"}, 100)
	src.BaseURL = srv.URL

	if _, err := src.FetchCategory(context.Background(), "cs.AI"); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestLookupByIDAndTitle(t *testing.T) {
	var gotQueries []string
	inWindow := testWindow.Start.Add(time.Hour)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQueries = append(gotQueries, r.URL.Query().Get("search_query"))
		fmt.Fprint(w, atomFeedXML(atomEntryXML("2601.00001v1", "cs.AI", inWindow, inWindow)))
	}))
	defer srv.Close()

	src := NewAPISource(testWindow, []string{"cs.AI"}, 100)
	src.BaseURL = srv.URL

	rec, err := src.Lookup(context.Background(), "2601.00001")
	if err != nil {
		t.Fatalf("lookup by id: %v", err)
	}
	if rec.ID != "2601.00001v1" {
		t.Errorf("id = %q", rec.ID)
	}

	if _, err := src.Lookup(context.Background(), "attention is all you need"); err != nil {
		t.Fatalf("lookup by title: %v", err)
	}

	if gotQueries[0] != "id:2601.00001" {
		t.Errorf("id query = %q", gotQueries[0])
	}
	if !strings.HasPrefix(gotQueries[1], "ti:") {
		t.Errorf("title query = %q", gotQueries[1])
	}
}

func TestLookupNoMatch(t *testing.T) {
	src := newAPITestServer(t, atomFeedXML())
	if _, err := src.Lookup(context.Background(), "no such paper"); err == nil {
		t.Error("expected error for empty result")
	}
}

func TestShortID(t *testing.T) {
	cases := map[string]string{
		"http://arxiv.org/abs/2401.00001v2":    "2401.00001v2",
		"https://arxiv.org/abs/hep-th/9901001": "hep-th/9901001",
		"2401.00001":                           "2401.00001",
	}
	for in, want := range cases {
		if got := shortID(in); got != want {
			t.Errorf("shortID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLooksLikeID(t *testing.T) {
	ids := []string{"2401.00001", "2401.00001v2", "hep-th/9901001"}
	for _, q := range ids {
		if !looksLikeID(q) {
			t.Errorf("looksLikeID(%q) = false, want true", q)
		}
	}
	titles := []string{"attention is all you need", "A. Study of 1. Things", "v2"}
	for _, q := range titles {
		if looksLikeID(q) {
			t.Errorf("looksLikeID(%q) = true, want false", q)
		}
	}
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) FetchCategory(context.Context, string) ([]paper.Record, error) {
	return nil, fmt.Errorf("boom")
}

func TestCollectorAbsorbsCategoryFailures(t *testing.T) {
	batch := NewCollector(failingSource{}, []string{"cs.AI", "cs.CV"}).Collect(context.Background())
	if len(batch) != 2 {
		t.Fatalf("expected every category present, got %v", batch)
	}
	if batch.Count() != 0 {
		t.Errorf("expected empty batch, got %d papers", batch.Count())
	}
}

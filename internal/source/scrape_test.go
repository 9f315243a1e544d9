package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
<div class="panel paper" id="2601.00001" keywords="diffusion, video">
  <h2><a class="title-link" href="/arxiv/2601.00001">Video Diffusion at Scale</a></h2>
  <p class="authors">
    <a class="author">Ada Lovelace</a>, <a class="author">Grace Hopper</a>
  </p>
  <p class="summary">We scale video diffusion models.</p>
  <p class="subjects"><a class="subject-1">cs.CV</a><a class="subject-1">cs.LG</a></p>
  <p class="date">Publish: 2026-01-05 14:30:00</p>
</div>
<div class="panel paper">
  <h2><a class="title-link">Orphan Without ID</a></h2>
</div>
<div class="panel paper" id="2601.00002">
  <p class="summary">No title here.</p>
</div>
<div class="panel paper" id="2601.00003">
  <h2><a class="title-link">Bad Date Format</a></h2>
  <p class="date">Publish: yesterday-ish</p>
</div>
</body></html>`

func newScrapeTestServer(t *testing.T, html string) *ScrapeSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, html)
	}))
	t.Cleanup(srv.Close)

	target := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	src := NewScrapeSource(target, 500)
	src.BaseURL = srv.URL
	return src
}

func TestScrapeFetchCategory(t *testing.T) {
	src := newScrapeTestServer(t, listingHTML)

	records, err := src.FetchCategory(context.Background(), "cs.CV")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// The two malformed panels are skipped, the bad-date one survives with
	// the fallback timestamp.
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(records), records)
	}

	r := records[0]
	if r.ID != "2601.00001" {
		t.Errorf("id = %q", r.ID)
	}
	if r.Title != "Video Diffusion at Scale" {
		t.Errorf("title = %q", r.Title)
	}
	if r.URL != "https://arxiv.org/abs/2601.00001" || r.PDFURL != "https://arxiv.org/pdf/2601.00001" {
		t.Errorf("urls = %q / %q", r.URL, r.PDFURL)
	}
	if len(r.Authors) != 2 || r.Authors[0] != "Ada Lovelace" || r.Authors[1] != "Grace Hopper" {
		t.Errorf("authors = %v", r.Authors)
	}
	if r.Abstract != "We scale video diffusion models." {
		t.Errorf("abstract = %q", r.Abstract)
	}
	if len(r.Categories) != 2 || r.Categories[0] != "cs.CV" {
		t.Errorf("categories = %v", r.Categories)
	}
	if r.PrimaryCategory != "cs.CV" {
		t.Errorf("primary = %q", r.PrimaryCategory)
	}
	if len(r.Keywords) != 2 || r.Keywords[0] != "diffusion" || r.Keywords[1] != "video" {
		t.Errorf("keywords = %v", r.Keywords)
	}

	want := time.Date(2026, time.January, 5, 14, 30, 0, 0, paper.ArchiveZone)
	if !r.Published.Equal(want) {
		t.Errorf("published = %v, want %v", r.Published, want)
	}
	if !r.Updated.Equal(r.Published) {
		t.Errorf("updated %v != published %v", r.Updated, r.Published)
	}
}

func TestScrapeFallbackPublishDate(t *testing.T) {
	src := newScrapeTestServer(t, listingHTML)

	records, err := src.FetchCategory(context.Background(), "cs.CV")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	r := records[1]
	if r.ID != "2601.00003" {
		t.Fatalf("unexpected second record: %+v", r)
	}
	want := time.Date(2026, time.January, 5, 12, 0, 0, 0, paper.ArchiveZone)
	if !r.Published.Equal(want) {
		t.Errorf("fallback published = %v, want noon %v", r.Published, want)
	}
}

func TestScrapeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewScrapeSource(time.Now(), 500)
	src.BaseURL = srv.URL

	if _, err := src.FetchCategory(context.Background(), "cs.CV"); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestScrapeRequestShape(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, "<html></html>")
	}))
	defer srv.Close()

	target := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	src := NewScrapeSource(target, 500)
	src.BaseURL = srv.URL

	if _, err := src.FetchCategory(context.Background(), "cs.CL"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/cs.CL" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "date=2026-01-05&show=500" {
		t.Errorf("query = %q", gotQuery)
	}
}

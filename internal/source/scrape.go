package source

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

const defaultScrapeBaseURL = "https://papers.cool/arxiv"

// ScrapeSource fetches papers from the papers.cool listing mirror, one HTTP
// GET per category for a fixed date. It is the fallback for when the API
// source is unavailable or disabled. The mirror serves exactly the target
// date's announcements, so no window scan is needed; only the
// primary-category filter applies.
type ScrapeSource struct {
	BaseURL    string
	client     *http.Client
	targetDate time.Time
	maxResults int
}

// NewScrapeSource creates a scrape source for the given target date.
func NewScrapeSource(targetDate time.Time, maxResults int) *ScrapeSource {
	return &ScrapeSource{
		BaseURL:    defaultScrapeBaseURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		targetDate: targetDate,
		maxResults: maxResults,
	}
}

// Name identifies the adapter in logs and run metadata.
func (s *ScrapeSource) Name() string { return "papers.cool" }

// FetchCategory fetches and parses one category listing page. A malformed
// listing element is skipped and logged; it never aborts the category.
func (s *ScrapeSource) FetchCategory(ctx context.Context, category string) ([]paper.Record, error) {
	pageURL := fmt.Sprintf("%s/%s?date=%s&show=%d",
		s.BaseURL, url.PathEscape(category), s.targetDate.Format("2006-01-02"), s.maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "arxivdigest/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}

	var records []paper.Record
	doc.Find("div.panel.paper").Each(func(_ int, sel *goquery.Selection) {
		rec, err := s.recordFromListing(sel, category)
		if err != nil {
			log.Printf("Skipping malformed listing element in %s: %v", category, err)
			return
		}
		rec.Normalize()
		records = append(records, rec)
	})

	return records, nil
}

// recordFromListing extracts one record from a div.panel.paper element.
func (s *ScrapeSource) recordFromListing(sel *goquery.Selection, category string) (paper.Record, error) {
	id, ok := sel.Attr("id")
	if !ok || id == "" {
		return paper.Record{}, fmt.Errorf("listing element has no id attribute")
	}

	title := strings.TrimSpace(sel.Find("a.title-link").First().Text())
	if title == "" {
		return paper.Record{}, fmt.Errorf("paper %s has no title", id)
	}

	var authors []string
	sel.Find("p.authors a.author").Each(func(_ int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	abstract := strings.TrimSpace(sel.Find("p.summary").First().Text())

	var categories []string
	sel.Find("p.subjects a.subject-1").Each(func(_ int, a *goquery.Selection) {
		if subj := strings.TrimSpace(a.Text()); subj != "" {
			categories = append(categories, subj)
		}
	})
	if len(categories) == 0 {
		categories = []string{category}
	}

	published := s.publishDate(sel, id)

	var keywords []string
	if kw, ok := sel.Attr("keywords"); ok {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keywords = append(keywords, k)
			}
		}
	}

	return paper.Record{
		ID:              id,
		URL:             "https://arxiv.org/abs/" + id,
		PDFURL:          "https://arxiv.org/pdf/" + id,
		Title:           title,
		Abstract:        abstract,
		Authors:         authors,
		Published:       published,
		Updated:         published, // the mirror only exposes the publish date
		PrimaryCategory: category,
		Categories:      categories,
		Keywords:        keywords,
	}, nil
}

// publishDate parses the "Publish: ..." line, falling back to the target
// date's noon when the mirror's format is unrecognized.
func (s *ScrapeSource) publishDate(sel *goquery.Selection, id string) time.Time {
	fallback := time.Date(s.targetDate.Year(), s.targetDate.Month(), s.targetDate.Day(), 12, 0, 0, 0, paper.ArchiveZone)

	dateText := strings.TrimSpace(sel.Find("p.date").First().Text())
	if idx := strings.Index(dateText, "Publish"); idx >= 0 {
		dateText = strings.Trim(dateText[idx+len("Publish"):], ":  \t")
	} else {
		return fallback
	}

	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, dateText, paper.ArchiveZone); err == nil {
			return t
		}
	}
	log.Printf("Paper %s: unparseable publish date %q", id, dateText)
	return fallback
}

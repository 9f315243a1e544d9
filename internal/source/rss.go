package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

const defaultRSSBaseURL = "https://rss.arxiv.org/rss"

// RSSSource fetches papers from the arXiv RSS service. Each feed carries
// exactly one day's announcements for a category, so like the scrape source
// it needs no window scan; cross-listed noise is still filtered by primary
// category.
type RSSSource struct {
	BaseURL   string
	parser    *gofeed.Parser
	requested map[string]bool
}

// NewRSSSource creates an RSS source filtered to the requested categories.
func NewRSSSource(categories []string) *RSSSource {
	return &RSSSource{
		BaseURL:   defaultRSSBaseURL,
		parser:    gofeed.NewParser(),
		requested: requestedSet(categories),
	}
}

// Name identifies the adapter in logs and run metadata.
func (s *RSSSource) Name() string { return "arxiv-rss" }

// FetchCategory parses one category feed into canonical records.
func (s *RSSSource) FetchCategory(ctx context.Context, category string) ([]paper.Record, error) {
	feed, err := s.parser.ParseURLWithContext(s.BaseURL+"/"+category, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	var records []paper.Record
	for _, item := range feed.Items {
		rec, ok := recordFromItem(item, category)
		if !ok {
			continue
		}
		rec.Normalize()
		if !s.requested[rec.PrimaryCategory] {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// recordFromItem maps one feed item to a canonical record. Items without a
// resolvable abs link are dropped.
func recordFromItem(item *gofeed.Item, category string) (paper.Record, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	id := shortID(link)
	if id == "" || id == link && !strings.Contains(link, "/abs/") {
		return paper.Record{}, false
	}

	published := time.Now().In(paper.ArchiveZone)
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.In(paper.ArchiveZone)
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.In(paper.ArchiveZone)
	}

	var authors []string
	for _, a := range item.Authors {
		for _, name := range strings.Split(a.Name, ",") {
			if name = strings.TrimSpace(name); name != "" {
				authors = append(authors, name)
			}
		}
	}

	primary := category
	if len(item.Categories) > 0 {
		primary = item.Categories[0]
	}

	return paper.Record{
		ID:              id,
		URL:             "https://arxiv.org/abs/" + id,
		PDFURL:          "https://arxiv.org/pdf/" + id,
		Title:           strings.TrimSpace(item.Title),
		Abstract:        extractAbstract(item.Description),
		Authors:         authors,
		Published:       published,
		Updated:         published,
		PrimaryCategory: primary,
		Categories:      item.Categories,
	}, true
}

// extractAbstract strips the metadata header the RSS service prepends to the
// item description ("arXiv:... Announce Type: ... Abstract: ...").
func extractAbstract(description string) string {
	if idx := strings.Index(description, "Abstract:"); idx >= 0 {
		description = description[idx+len("Abstract:"):]
	}
	return strings.TrimSpace(description)
}

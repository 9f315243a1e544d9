// Package source fetches raw paper listings from one of several origins and
// normalizes them into canonical records.
package source

import (
	"context"
	"log"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

// Source fetches the papers announced for one category. Implementations
// normalize records at the boundary; callers receive canonical records only.
type Source interface {
	Name() string
	FetchCategory(ctx context.Context, category string) ([]paper.Record, error)
}

// Collector runs a Source over a list of categories. A transport or parse
// failure in one category yields an empty list for that category and a logged
// error; it never aborts the others.
type Collector struct {
	src        Source
	categories []string
}

// NewCollector creates a collector for the configured categories.
func NewCollector(src Source, categories []string) *Collector {
	return &Collector{src: src, categories: categories}
}

// Collect fetches every category sequentially and returns the batch. Every
// requested category is present in the result, possibly empty.
func (c *Collector) Collect(ctx context.Context) paper.Batch {
	batch := make(paper.Batch, len(c.categories))
	for _, category := range c.categories {
		records, err := c.src.FetchCategory(ctx, category)
		if err != nil {
			log.Printf("Fetching category %s from %s: %v", category, c.src.Name(), err)
			batch[category] = nil
			continue
		}
		batch[category] = records
		log.Printf("Retrieved %d papers for category %s from %s", len(records), category, c.src.Name())
	}
	return batch
}

// requestedSet builds the primary-category filter set shared by adapters.
func requestedSet(categories []string) map[string]bool {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return set
}

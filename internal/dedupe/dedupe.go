// Package dedupe removes duplicate papers within a batch and against the
// previous run's persisted output.
package dedupe

import (
	"log"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

// IntraBatch keeps only the first occurrence of each paper ID, walking
// categories in the given order and records in retrieval order. Later
// duplicates (a paper cross-listed in two requested categories) are dropped
// entirely, not merged. The pass is idempotent.
func IntraBatch(batch paper.Batch, order []string) paper.Batch {
	seen := make(map[string]struct{}, batch.Count())
	result := make(paper.Batch, len(batch))

	for _, category := range order {
		result[category] = nil
		for _, rec := range batch[category] {
			if _, ok := seen[rec.ID]; ok {
				log.Printf("Dropping cross-listed duplicate %s from %s", rec.ID, category)
				continue
			}
			seen[rec.ID] = struct{}{}
			result[category] = append(result[category], rec)
		}
	}
	return result
}

// PreviousBatch loads the batch persisted for a given date, used to seed the
// cross-run pass. It is satisfied by store.Store.
type PreviousBatch interface {
	Load(date time.Time) (paper.Batch, error)
	Exists(date time.Time) bool
}

// CrossRun removes records whose ID already appears in the previous business
// day's persisted batch. A missing previous file is a no-op; an unreadable
// one is logged and the batch passes through unchanged, since forward
// progress never depends on dedup against history.
func CrossRun(batch paper.Batch, targetDate time.Time, prev PreviousBatch) paper.Batch {
	prevDay := PreviousBusinessDay(targetDate)
	if !prev.Exists(prevDay) {
		log.Printf("No batch persisted for %s, skipping cross-run dedup", prevDay.Format("2006-01-02"))
		return batch
	}

	prevBatch, err := prev.Load(prevDay)
	if err != nil {
		log.Printf("Loading previous batch for %s: %v (continuing without cross-run dedup)", prevDay.Format("2006-01-02"), err)
		return batch
	}

	prevIDs := prevBatch.IDs()
	result := make(paper.Batch, len(batch))
	removed := 0
	for category, records := range batch {
		result[category] = nil
		for _, rec := range records {
			if _, ok := prevIDs[rec.ID]; ok {
				removed++
				continue
			}
			result[category] = append(result[category], rec)
		}
	}

	if removed > 0 {
		log.Printf("Removed %d papers already present in the %s batch", removed, prevDay.Format("2006-01-02"))
	}
	return result
}

// PreviousBusinessDay steps back one day from date, then keeps walking back
// over Saturday and Sunday.
func PreviousBusinessDay(date time.Time) time.Time {
	prev := date.AddDate(0, 0, -1)
	for prev.Weekday() == time.Saturday || prev.Weekday() == time.Sunday {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

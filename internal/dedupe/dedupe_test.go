package dedupe

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

func rec(id string) paper.Record {
	return paper.Record{ID: id, Title: "Paper " + id}
}

func ids(records []paper.Record) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestIntraBatchCrossListed(t *testing.T) {
	batch := paper.Batch{
		"cs.AI": {rec("A"), rec("B")},
		"cs.CV": {rec("B"), rec("C")},
	}
	order := []string{"cs.AI", "cs.CV"}

	got := IntraBatch(batch, order)

	if want := []string{"A", "B"}; !reflect.DeepEqual(ids(got["cs.AI"]), want) {
		t.Errorf("cs.AI = %v, want %v", ids(got["cs.AI"]), want)
	}
	if want := []string{"C"}; !reflect.DeepEqual(ids(got["cs.CV"]), want) {
		t.Errorf("cs.CV = %v, want %v", ids(got["cs.CV"]), want)
	}
}

func TestIntraBatchAttributionFollowsOrder(t *testing.T) {
	batch := paper.Batch{
		"cs.AI": {rec("B")},
		"cs.CV": {rec("B")},
	}

	got := IntraBatch(batch, []string{"cs.CV", "cs.AI"})
	if len(got["cs.CV"]) != 1 || len(got["cs.AI"]) != 0 {
		t.Errorf("expected B attributed to cs.CV, got cs.CV=%v cs.AI=%v", ids(got["cs.CV"]), ids(got["cs.AI"]))
	}
}

func TestIntraBatchIdempotent(t *testing.T) {
	batch := paper.Batch{
		"cs.AI": {rec("A"), rec("B")},
		"cs.CV": {rec("B"), rec("C")},
	}
	order := []string{"cs.AI", "cs.CV"}

	once := IntraBatch(batch, order)
	twice := IntraBatch(once, order)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second pass changed the batch: %v vs %v", once, twice)
	}
}

func TestIntraBatchNoSharedIDs(t *testing.T) {
	batch := paper.Batch{
		"cs.AI": {rec("A"), rec("A"), rec("B")},
		"cs.CL": {rec("B"), rec("A"), rec("C")},
	}
	got := IntraBatch(batch, []string{"cs.AI", "cs.CL"})

	seen := map[string]bool{}
	for _, records := range got {
		for _, r := range records {
			if seen[r.ID] {
				t.Fatalf("duplicate id %s in output", r.ID)
			}
			seen[r.ID] = true
		}
	}
	if got.Count() > batch.Count() {
		t.Errorf("output larger than input: %d > %d", got.Count(), batch.Count())
	}
}

// fakePrev implements PreviousBatch for tests.
type fakePrev struct {
	batch  paper.Batch
	exists bool
	err    error
}

func (f *fakePrev) Load(time.Time) (paper.Batch, error) { return f.batch, f.err }
func (f *fakePrev) Exists(time.Time) bool               { return f.exists }

func TestCrossRunRemovesSeenIDs(t *testing.T) {
	batch := paper.Batch{"cs.AI": {rec("2401.00001"), rec("2401.00002")}}
	prev := &fakePrev{
		batch:  paper.Batch{"cs.CV": {rec("2401.00001")}},
		exists: true,
	}

	got := CrossRun(batch, time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC), prev)
	if want := []string{"2401.00002"}; !reflect.DeepEqual(ids(got["cs.AI"]), want) {
		t.Errorf("cs.AI = %v, want %v", ids(got["cs.AI"]), want)
	}
}

func TestCrossRunMissingPreviousFile(t *testing.T) {
	batch := paper.Batch{"cs.AI": {rec("A")}}
	got := CrossRun(batch, time.Now(), &fakePrev{exists: false})
	if !reflect.DeepEqual(got, batch) {
		t.Errorf("expected batch unchanged, got %v", got)
	}
}

func TestCrossRunUnreadablePreviousFile(t *testing.T) {
	batch := paper.Batch{"cs.AI": {rec("A")}}
	prev := &fakePrev{exists: true, err: errors.New("corrupt json")}

	got := CrossRun(batch, time.Now(), prev)
	if len(got["cs.AI"]) != 1 {
		t.Error("expected batch to pass through unchanged when previous file is unreadable")
	}
}

func TestPreviousBusinessDay(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2026-01-06", "2026-01-05"}, // Tuesday -> Monday
		{"2026-01-05", "2026-01-02"}, // Monday -> Friday
		{"2026-01-11", "2026-01-09"}, // Sunday -> Friday
	}
	for _, tt := range tests {
		date, _ := time.Parse("2006-01-02", tt.date)
		got := PreviousBusinessDay(date).Format("2006-01-02")
		if got != tt.want {
			t.Errorf("PreviousBusinessDay(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}

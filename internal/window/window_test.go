package window

import (
	"errors"
	"testing"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestComputeMonday(t *testing.T) {
	// Monday 2026-01-05 covers Thursday 1st 10:00 to Friday 2nd 14:00.
	w, err := Compute(date(2026, time.January, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStart := time.Date(2026, time.January, 1, 10, 0, 0, 0, paper.ArchiveZone)
	wantEnd := time.Date(2026, time.January, 2, 14, 0, 0, 0, paper.ArchiveZone)
	if !w.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", w.End, wantEnd)
	}
}

func TestComputeAllMappedWeekdays(t *testing.T) {
	// 2026-01-05 is a Monday; walk Monday through Friday.
	for i := 0; i < 5; i++ {
		target := date(2026, time.January, 5+i)
		w, err := Compute(target)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", target.Weekday(), err)
		}
		if !w.Start.Before(w.End) {
			t.Errorf("%s: start %v not before end %v", target.Weekday(), w.Start, w.End)
		}

		endOfDay := time.Date(target.Year(), target.Month(), target.Day(), 23, 59, 59, 0, paper.ArchiveZone)
		if !w.End.Before(endOfDay) {
			t.Errorf("%s: end %v not before end of target day", target.Weekday(), w.End)
		}
	}
}

func TestComputeWeekend(t *testing.T) {
	for _, d := range []int{10, 11} { // Saturday, Sunday
		_, err := Compute(date(2026, time.January, d))
		if !errors.Is(err, ErrNoSchedule) {
			t.Errorf("day %d: expected ErrNoSchedule, got %v", d, err)
		}
	}
}

func TestContainsHalfOpen(t *testing.T) {
	w, err := Compute(date(2026, time.January, 7)) // Wednesday
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w.Contains(w.Start) {
		t.Error("start boundary should be excluded")
	}
	if !w.Contains(w.Start.Add(time.Second)) {
		t.Error("instant after start should be included")
	}
	if !w.Contains(w.End) {
		t.Error("end boundary should be included")
	}
	if w.Contains(w.End.Add(time.Second)) {
		t.Error("instant after end should be excluded")
	}
}

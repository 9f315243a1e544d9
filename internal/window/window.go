// Package window computes the acceptance time interval for one target date.
//
// arXiv announces new submissions once per weekday at a fixed cutover time,
// so the papers belonging to a calendar date span an irregular interval of
// submission days: Monday's listing covers the previous Thursday and Friday,
// Tuesday's covers the weekend backlog, and so on.
package window

import (
	"errors"
	"fmt"
	"time"

	"github.com/arxivdigest/arxivdigest/internal/paper"
)

// ErrNoSchedule is returned for dates without an announcement, i.e. weekends.
// Callers are expected to skip those days entirely; hitting this error is a
// configuration problem and aborts the run before any fetch.
var ErrNoSchedule = errors.New("no announcement schedule for weekday")

// Window is the half-open acceptance interval for one target date. Start is
// exclusive: records with updated <= Start do not qualify.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether an update timestamp falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return t.After(w.Start) && !t.After(w.End)
}

const (
	startHour = 10
	endHour   = 14
)

// daysBack maps a weekday to the (start, end) day offsets of its announcement
// interval. Saturday and Sunday are deliberately absent.
var daysBack = map[time.Weekday][2]int{
	time.Monday:    {4, 3}, // last Thursday to last Friday
	time.Tuesday:   {4, 1}, // last Friday over the weekend
	time.Wednesday: {2, 1},
	time.Thursday:  {2, 1},
	time.Friday:    {2, 1},
}

// Compute returns the acceptance window for targetDate. Both boundaries are
// built at the archive's fixed cutover times in paper.ArchiveZone, regardless
// of the caller's local zone.
func Compute(targetDate time.Time) (Window, error) {
	delta, ok := daysBack[targetDate.Weekday()]
	if !ok {
		return Window{}, fmt.Errorf("%w: %s (%s)", ErrNoSchedule, targetDate.Weekday(), targetDate.Format("2006-01-02"))
	}

	start := at(targetDate.AddDate(0, 0, -delta[0]), startHour)
	end := at(targetDate.AddDate(0, 0, -delta[1]), endHour)
	return Window{Start: start, End: end}, nil
}

func at(day time.Time, hour int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, paper.ArchiveZone)
}

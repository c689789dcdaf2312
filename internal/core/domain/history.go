package domain

import (
	"fmt"
	"time"
)

// TimestampLayout is the persisted history timestamp format (local wall clock).
const TimestampLayout = "2006-01-02 15:04:05"

// HistoryRecord is one completed analysis in the append-only history log.
type HistoryRecord struct {
	Timestamp string      `json:"timestamp"`
	Filename  string      `json:"filename"`
	Data      ClassCounts `json:"data"`
}

func NewHistoryRecord(at time.Time, filename string, counts ClassCounts) HistoryRecord {
	return HistoryRecord{
		Timestamp: FormatTimestamp(at),
		Filename:  filename,
		Data:      counts.Normalized(),
	}
}

func FormatTimestamp(t time.Time) string {
	return t.In(time.Local).Format(TimestampLayout)
}

func ParseTimestamp(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, WrapError(ErrInvalidInput, "parse timestamp", err)
	}
	return t, nil
}

// Window selects a slice of history. The zero value selects everything.
type Window struct {
	Since *time.Time
	Days  *int
}

func AllHistory() Window { return Window{} }

func LastDays(days int) Window { return Window{Days: &days} }

func SinceTime(t time.Time) Window { return Window{Since: &t} }

func (w Window) IsAll() bool { return w.Since == nil && w.Days == nil }

const day = 24 * time.Hour

// Contains reports whether a record taken at ts falls into the window evaluated at now.
// Age is counted in whole elapsed days, so a 7-day window keeps anything younger than 8 days.
func (w Window) Contains(ts, now time.Time) bool {
	if w.Days != nil && int(now.Sub(ts)/day) > *w.Days {
		return false
	}
	if w.Since != nil && ts.Before(*w.Since) {
		return false
	}
	return true
}

// DaysCutoff is the exclusive lower bound matching Contains for a days window:
// a record is inside when it was taken strictly after the cutoff.
func DaysCutoff(days int, now time.Time) time.Time {
	return now.Add(-time.Duration(days+1) * day)
}

func (w Window) String() string {
	switch {
	case w.Days != nil && w.Since != nil:
		return fmt.Sprintf("days=%d,since=%s", *w.Days, FormatTimestamp(*w.Since))
	case w.Days != nil:
		return fmt.Sprintf("days=%d", *w.Days)
	case w.Since != nil:
		return "since=" + FormatTimestamp(*w.Since)
	default:
		return "all"
	}
}

// PresetWindow maps the dashboard period names to windows.
func PresetWindow(name string) (Window, error) {
	switch name {
	case "week":
		return LastDays(7), nil
	case "month":
		return LastDays(30), nil
	case "quarter":
		return LastDays(90), nil
	case "", "all":
		return AllHistory(), nil
	default:
		return Window{}, WrapError(ErrInvalidInput, "preset window", fmt.Errorf("unknown period %q", name))
	}
}

// HistoryLoad is the result of reading the history log. A non-nil Err means the
// store could not be read and Records is empty; callers treat it like an empty log.
type HistoryLoad struct {
	Records []HistoryRecord
	Err     error
}

func (l HistoryLoad) Degraded() bool { return l.Err != nil }

// HistorySummary is the overview shown next to the detail table.
type HistorySummary struct {
	Count    int    `json:"count"`
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

func SummarizeHistory(load HistoryLoad) HistorySummary {
	summary := HistorySummary{Count: len(load.Records), Degraded: load.Degraded()}
	if len(load.Records) > 0 {
		summary.Earliest = load.Records[0].Timestamp
		summary.Latest = load.Records[len(load.Records)-1].Timestamp
	}
	return summary
}

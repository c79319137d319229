package forecast

import (
	"time"

	"github.com/mediaplan/mediaplan/internal/money"
)

// Partition splits [start, end] into consecutive calendar windows. Weeks are
// ISO weeks (Monday to Sunday) and months calendar months; the first window
// starts at start and the last one is clipped to end.
func Partition(start, end time.Time, g Granularity) []Window {
	start, end = money.Date(start), money.Date(end)
	if end.Before(start) {
		return nil
	}
	var windows []Window
	for cursor := start; !cursor.After(end); {
		bucketEnd := bucketEnd(cursor, g)
		if bucketEnd.After(end) {
			bucketEnd = end
		}
		windows = append(windows, Window{Start: cursor, End: bucketEnd})
		cursor = bucketEnd.AddDate(0, 0, 1)
	}
	return windows
}

// bucketEnd returns the last day of the bucket containing day.
func bucketEnd(day time.Time, g Granularity) time.Time {
	switch g {
	case GranularityWeek:
		// Weekday: Sunday=0 ... Saturday=6; ISO weeks end on Sunday.
		offset := (7 - int(day.Weekday())) % 7
		return day.AddDate(0, 0, offset)
	case GranularityMonth:
		firstOfNext := time.Date(day.Year(), day.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		return firstOfNext.AddDate(0, 0, -1)
	default:
		return day
	}
}

// Overlaps reports whether two inclusive windows share at least one day.
func (w Window) Overlaps(o Window) bool {
	return !w.Start.After(o.End) && !o.Start.After(w.End)
}

// Days is the inclusive length of the window.
func (w Window) Days() int {
	return money.DaysInclusive(w.Start, w.End)
}

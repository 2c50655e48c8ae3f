package availability

import (
	"sort"
	"time"
)

// Interval is a half-open time span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. An interval
// ending exactly when another begins does not overlap, so back-to-back
// bookings are always allowed.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

// Valid reports whether the interval has positive length.
func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

// OverlapsAny reports whether [start, end) intersects any of the busy intervals.
func OverlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}

// Subtract removes every block from base, splitting base around each
// intersecting block and dropping empty leftovers. The result is sorted
// and non-overlapping.
func Subtract(base Interval, blocks []Interval) []Interval {
	remaining := []Interval{base}
	for _, b := range blocks {
		if !b.Valid() {
			continue
		}
		var next []Interval
		for _, r := range remaining {
			if !r.Overlaps(b) {
				next = append(next, r)
				continue
			}
			if b.Start.After(r.Start) {
				next = append(next, Interval{Start: r.Start, End: b.Start})
			}
			if b.End.Before(r.End) {
				next = append(next, Interval{Start: b.End, End: r.End})
			}
		}
		remaining = next
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Start.Before(remaining[j].Start) })
	return remaining
}

// SortByStart orders intervals ascending by start time, in place.
func SortByStart(ivs []Interval) {
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start.Before(ivs[j].Start) })
}

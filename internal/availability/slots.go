package availability

import (
	"sort"
	"time"
)

// Step is the grid spacing between candidate reservation start times.
const Step = 15 * time.Minute

// DurationForParty returns the seating duration for a party size: small
// parties (two or fewer) turn over in 90 minutes, larger ones in 120.
func DurationForParty(partySize int) time.Duration {
	if partySize <= 2 {
		return 90 * time.Minute
	}
	return 120 * time.Minute
}

// SlotStarts expands allowed windows into an ordered, duplicate-free list of
// candidate start times. A start is emitted only when the full duration fits
// inside its window, stepping from the window start.
func SlotStarts(windows []Interval, duration, step time.Duration) []time.Time {
	if duration <= 0 || step <= 0 {
		return nil
	}
	SortByStart(windows)

	var starts []time.Time
	seen := make(map[int64]struct{})
	for _, w := range windows {
		if !w.Valid() {
			continue
		}
		for t := w.Start; !t.Add(duration).After(w.End); t = t.Add(step) {
			key := t.Unix()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			starts = append(starts, t)
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	return starts
}

// Slot is one candidate reservation start with its computed availability.
type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

package availability

import "time"

// NextOpen scans forward from desired, per table, for the earliest start at
// which a block of the given duration is free, within the horizon. Busy
// intervals must be sorted by start. On a conflict the cursor jumps to
// max(cursor+step, block end) rather than stepping the whole horizon; the
// fixed step applies only between conflict-free positions so starts stay on
// the slot grid. Returns nil when every table is blocked through the horizon.
func NextOpen(desired time.Time, duration, step, horizon time.Duration, busyPerTable map[string][]Interval) *time.Time {
	if duration <= 0 || step <= 0 || horizon <= 0 {
		return nil
	}
	limit := desired.Add(horizon)

	var best *time.Time
	for _, busy := range busyPerTable {
		cursor := desired
		for !cursor.Add(duration).After(limit) {
			conflict, ok := firstConflict(cursor, cursor.Add(duration), busy)
			if !ok {
				if best == nil || cursor.Before(*best) {
					c := cursor
					best = &c
				}
				break
			}
			next := cursor.Add(step)
			if conflict.End.After(next) {
				next = conflict.End
			}
			cursor = next
		}
	}
	return best
}

func firstConflict(start, end time.Time, busy []Interval) (Interval, bool) {
	for _, b := range busy {
		if b.Start.After(end) || b.Start.Equal(end) {
			break
		}
		if start.Before(b.End) && b.Start.Before(end) {
			return b, true
		}
	}
	return Interval{}, false
}

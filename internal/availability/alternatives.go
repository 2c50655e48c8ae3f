package availability

// Nearest finds the closest available slots strictly before and strictly
// after the requested start within a single day's slot vector. Either result
// is nil when no available slot exists in that direction; the scan never
// leaves the vector, so it cannot cross the day boundary.
func Nearest(slots []Slot, requested Interval) (before, after *Slot) {
	idx := len(slots)
	for i, s := range slots {
		if !s.Start.Before(requested.Start) {
			idx = i
			break
		}
	}

	for i := idx - 1; i >= 0; i-- {
		if slots[i].Available {
			before = &slots[i]
			break
		}
	}

	start := idx
	if idx < len(slots) && slots[idx].Start.Equal(requested.Start) {
		start = idx + 1
	}
	for i := start; i < len(slots); i++ {
		if slots[i].Available {
			after = &slots[i]
			break
		}
	}
	return before, after
}

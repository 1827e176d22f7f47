package cluster

// SlotRange is a contiguous run of hash slots owned by one master.
// Both bounds are inclusive, matching the engine's own range notation.
type SlotRange struct {
	Start int
	End   int
}

// Count returns the number of slots in the range.
func (r SlotRange) Count() int {
	return r.End - r.Start + 1
}

// PlanSlots mirrors the engine's deterministic slot-splitting algorithm:
// the slot space is divided into contiguous ranges sized to evenly split
// TotalSlots across the masters, with the remainder going to the earliest
// masters. The orchestrator never pushes this plan to the engine; it only
// uses it to describe and verify what the engine's creation command is
// expected to produce.
//
// Returns one range per master, in master order, covering [0, TotalSlots)
// with no gaps and no overlap. Returns nil for masters <= 0.
func PlanSlots(masters int) []SlotRange {
	if masters <= 0 {
		return nil
	}
	base := TotalSlots / masters
	remainder := TotalSlots % masters
	ranges := make([]SlotRange, 0, masters)
	next := 0
	for i := 0; i < masters; i++ {
		size := base
		if i < remainder {
			size++
		}
		ranges = append(ranges, SlotRange{Start: next, End: next + size - 1})
		next += size
	}
	return ranges
}

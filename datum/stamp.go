package datum

// Stamp is a monotonically non-decreasing ordinal attached to each datum
// traversing an edge. Stamps establish a partial order across the parallel
// input edges of a process: a synchronized process only combines datums
// whose stamps are equal.
type Stamp struct {
	// Index is the frame/step ordinal
	Index uint64
	// Increment is how many steps this stamp represents; 0 is treated as 1
	Increment uint64
}

// NewStamp creates a stamp at index 0 with the given increment
func NewStamp(increment uint64) Stamp {
	if increment == 0 {
		increment = 1
	}
	return Stamp{Index: 0, Increment: increment}
}

// step returns the effective increment, normalizing 0 to 1
func (s Stamp) step() uint64 {
	if s.Increment == 0 {
		return 1
	}
	return s.Increment
}

// Next returns the successor stamp
func (s Stamp) Next() Stamp {
	return Stamp{Index: s.Index + s.step(), Increment: s.step()}
}

// Equal reports whether two stamps mark the same step
func (s Stamp) Equal(o Stamp) bool {
	return s.Index == o.Index
}

// Compare returns -1, 0, or 1 as s orders before, with, or after o
func (s Stamp) Compare(o Stamp) int {
	switch {
	case s.Index < o.Index:
		return -1
	case s.Index > o.Index:
		return 1
	default:
		return 0
	}
}

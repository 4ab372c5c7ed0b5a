package slidingwindow

import "fmt"

// Range is an inclusive interval of counters.
type Range struct {
	Low  int64
	High int64
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Low, r.High)
}

// Empty reports whether the range is inverted.
func (r Range) Empty() bool {
	return r.Low > r.High
}

// Width returns High - Low.
func (r Range) Width() int64 {
	return r.High - r.Low
}

// Overlaps reports whether a and b overlap, touching and containment included.
func Overlaps(a, b Range) bool {
	union := max(a.High, b.High) - min(a.Low, b.Low)
	return union <= a.Width()+b.Width()
}

// OverlapVector returns the edge displacements needed to turn current into target.
// A positive dLow means the target reaches below current's low edge; a negative
// dLow means current's low edge must be trimmed. dHigh follows the same rule at
// the high edge. ok is false when the ranges are disjoint.
func OverlapVector(current, target Range) (dLow, dHigh int64, ok bool) {
	if !Overlaps(current, target) {
		return 0, 0, false
	}
	return current.Low - target.Low, target.High - current.High, true
}

// Clamp restricts r to bounds.
func Clamp(r, bounds Range) Range {
	return Range{
		Low:  max(r.Low, bounds.Low),
		High: min(r.High, bounds.High),
	}
}

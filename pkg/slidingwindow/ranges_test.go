package slidingwindow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{name: "identical", a: Range{10, 20}, b: Range{10, 20}, want: true},
		{name: "partial overlap", a: Range{10, 20}, b: Range{15, 25}, want: true},
		{name: "touching", a: Range{10, 20}, b: Range{20, 30}, want: true},
		{name: "containment", a: Range{10, 30}, b: Range{12, 28}, want: true},
		{name: "adjacent but not touching", a: Range{10, 20}, b: Range{21, 30}, want: false},
		{name: "disjoint", a: Range{10, 20}, b: Range{100, 110}, want: false},
		{name: "empty window against first counter", a: Range{0, 0}, b: Range{1, 1}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestOverlapVector(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name            string
		current, target Range
		wantLow         int64
		wantHigh        int64
		wantOK          bool
	}{
		{name: "shift up", current: Range{10, 20}, target: Range{15, 25}, wantLow: -5, wantHigh: 5, wantOK: true},
		{name: "shift down", current: Range{10, 20}, target: Range{5, 15}, wantLow: 5, wantHigh: -5, wantOK: true},
		{name: "shrink both edges", current: Range{10, 30}, target: Range{12, 28}, wantLow: -2, wantHigh: -2, wantOK: true},
		{name: "grow both edges", current: Range{10, 20}, target: Range{5, 25}, wantLow: 5, wantHigh: 5, wantOK: true},
		{name: "same range", current: Range{10, 20}, target: Range{10, 20}, wantOK: true},
		{name: "disjoint", current: Range{10, 20}, target: Range{100, 110}, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dLow, dHigh, ok := OverlapVector(tt.current, tt.target)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLow, dLow)
			assert.Equal(t, tt.wantHigh, dHigh)
		})
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()
	bounds := Range{1, 100}
	assert.Equal(t, Range{1, 50}, Clamp(Range{-10, 50}, bounds))
	assert.Equal(t, Range{90, 100}, Clamp(Range{90, 200}, bounds))
	assert.Equal(t, Range{20, 30}, Clamp(Range{20, 30}, bounds))

	got := Clamp(Range{150, 200}, bounds)
	assert.True(t, got.Empty(), "range past the bounds clamps to an inverted range")
}

func TestRange_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "[3, 7]", Range{3, 7}.String())
	assert.Equal(t, int64(4), Range{3, 7}.Width())
}

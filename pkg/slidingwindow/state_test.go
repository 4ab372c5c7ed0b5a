package slidingwindow

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(c int64) Record {
	return Record{
		Counter:   c,
		StartLine: (c - 1) * 2,
		EndLine:   c * 2,
		Identity:  fmt.Sprintf("id-%d", c),
		Stdout:    fmt.Sprintf("line %d a\nline %d b", c, c),
	}
}

func fillState(t *testing.T, s *State, low, high int64) {
	t.Helper()
	for c := low; c <= high; c++ {
		require.NoError(t, s.Insert(rec(c)))
	}
}

func TestState_Empty(t *testing.T) {
	t.Parallel()
	s := NewState()
	assert.Equal(t, int64(0), s.Head())
	assert.Equal(t, int64(0), s.Tail())
	assert.Equal(t, Range{0, 0}, s.Range())
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 10, s.Capacity(10))
	assert.Equal(t, int64(0), s.Lines())
	assert.Empty(t, s.Counters())
	assert.False(t, s.Contains(1))
}

func TestState_Insert(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		counter int64
		wantErr bool
	}{
		{name: "extends the tail", counter: 21},
		{name: "extends the head", counter: 9},
		{name: "gap above the tail", counter: 23, wantErr: true},
		{name: "gap below the head", counter: 5, wantErr: true},
		{name: "already materialized", counter: 15, wantErr: true},
		{name: "below the first counter", counter: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewState()
			fillState(t, s, 10, 20)

			err := s.Insert(rec(tt.counter))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNotContiguous)
				assert.Equal(t, Range{10, 20}, s.Range())
				assert.Equal(t, 11, s.Count())
				return
			}
			require.NoError(t, err)
			assert.True(t, s.Contains(tt.counter))
			assert.Equal(t, 12, s.Count())
			assert.Equal(t, int64(24), s.Lines())
		})
	}
}

func TestState_Lookups(t *testing.T) {
	t.Parallel()
	s := NewState()
	fillState(t, s, 3, 5)

	sp, ok := s.Span(4)
	require.True(t, ok)
	assert.Equal(t, Span{Start: 6, End: 8}, sp)

	id, ok := s.Identity(5)
	require.True(t, ok)
	assert.Equal(t, "id-5", id)

	_, ok = s.Identity(6)
	assert.False(t, ok)

	assert.Equal(t, []int64{3, 4, 5}, s.Counters())
	assert.Equal(t, 7, s.Capacity(10))
	assert.Zero(t, s.Capacity(2), "capacity never goes negative")
}

func TestState_Edges(t *testing.T) {
	t.Parallel()
	s := NewState()
	fillState(t, s, 10, 20)

	high := s.HighEdge(3)
	assert.Equal(t, []int64{20, 19, 18}, high.Counters)
	assert.Equal(t, []string{"id-20", "id-19", "id-18"}, high.Identities)
	assert.Equal(t, int64(6), high.Lines)

	low := s.LowEdge(2)
	assert.Equal(t, []int64{10, 11}, low.Counters)
	assert.Equal(t, int64(4), low.Lines)

	all := s.LowEdge(100)
	assert.Len(t, all.Counters, 11, "edge is capped at the window size")
}

func TestState_EdgeZeroSpan(t *testing.T) {
	t.Parallel()
	s := NewState()
	require.NoError(t, s.Insert(Record{Counter: 1, StartLine: 0, EndLine: 2, Identity: "a"}))
	require.NoError(t, s.Insert(Record{Counter: 2, StartLine: 2, EndLine: 2, Identity: "b"}))

	e := s.HighEdge(2)
	assert.Equal(t, int64(2), e.Lines, "a record without lines contributes nothing")
}

func TestState_Remove(t *testing.T) {
	t.Parallel()
	s := NewState()
	fillState(t, s, 10, 20)

	s.Remove(s.LowEdge(3).Counters)
	assert.Equal(t, Range{13, 20}, s.Range())

	s.Remove(s.HighEdge(2).Counters)
	assert.Equal(t, Range{13, 18}, s.Range())
	assert.Equal(t, int64(12), s.Lines())
	_, ok := s.Identity(19)
	assert.False(t, ok, "identity is removed together with the span")

	s.Remove(s.LowEdge(s.Count()).Counters)
	assert.Equal(t, Range{0, 0}, s.Range())
	assert.Equal(t, int64(0), s.Lines())

	// Removing unknown counters is a no-op.
	s.Remove([]int64{1, 2})
	assert.Equal(t, 0, s.Count())
}

func TestState_Clear(t *testing.T) {
	t.Parallel()
	s := NewState()
	fillState(t, s, 1, 5)
	s.Clear()
	assert.Equal(t, Range{0, 0}, s.Range())
	assert.Equal(t, int64(0), s.Lines())
	require.NoError(t, s.Insert(rec(42)), "a cleared window accepts any counter")
}

func TestState_ConcurrentReads(t *testing.T) {
	t.Parallel()
	s := NewState()
	fillState(t, s, 1, 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r := s.Range()
				assert.LessOrEqual(t, r.Low, r.High)
				_ = s.Counters()
			}
		}()
	}
	for c := int64(11); c <= 50; c++ {
		require.NoError(t, s.Insert(rec(c)))
	}
	wg.Wait()
	assert.Equal(t, Range{1, 50}, s.Range())
}

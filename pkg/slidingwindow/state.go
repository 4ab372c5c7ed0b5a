package slidingwindow

import (
	"errors"
	"slices"
	"sync"
)

// ErrNotContiguous is returned when an insert would leave a gap in the window.
var ErrNotContiguous = errors.New("record does not extend the window contiguously")

// State is a thread-safe in-memory index of the materialized window.
// Counters in the window are always exactly head..tail.
type State struct {
	mu         sync.Mutex
	head       int64 // lowest materialized counter, 0 when empty.
	tail       int64 // highest materialized counter, 0 when empty.
	spans      map[int64]Span
	identities map[int64]string
	lines      int64 // summed line span of the window.
}

// Edge is a snapshot of records at one end of the window.
type Edge struct {
	Counters   []int64
	Identities []string
	Lines      int64
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		spans:      make(map[int64]Span),
		identities: make(map[int64]string),
	}
}

// Head returns the lowest materialized counter, or 0 if the window is empty.
func (s *State) Head() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head
}

// Tail returns the highest materialized counter, or 0 if the window is empty.
func (s *State) Tail() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tail
}

// Range returns [head, tail].
func (s *State) Range() Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Range{Low: s.head, High: s.tail}
}

// Count returns the number of materialized counters.
func (s *State) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spans)
}

// Capacity returns how many more counters fit under limit, or 0 when the
// window already holds limit or more.
func (s *State) Capacity(limit int) int {
	return max(limit-s.Count(), 0)
}

// Lines returns the summed line span of the window.
func (s *State) Lines() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

// Contains reports whether counter is materialized.
func (s *State) Contains(counter int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.spans[counter]
	return ok
}

// Span returns the line span of a materialized counter.
func (s *State) Span(counter int64) (Span, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.spans[counter]
	return sp, ok
}

// Identity returns the identity of a materialized counter.
func (s *State) Identity(counter int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[counter]
	return id, ok
}

// Counters returns the materialized counters in ascending order.
func (s *State) Counters() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.spans))
	for c := range s.spans {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Insert adds a record at either edge of the window, or starts an empty window.
func (s *State) Insert(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.Counter < 1 {
		return ErrNotContiguous
	}
	c := r.Counter
	switch {
	case len(s.spans) == 0:
		s.head, s.tail = c, c
	case c == s.tail+1:
		s.tail = c
	case c+1 == s.head:
		s.head = c
	default:
		return ErrNotContiguous
	}
	s.spans[r.Counter] = r.Span()
	s.identities[r.Counter] = r.Identity
	s.lines += r.Span().Lines()
	return nil
}

// HighEdge returns the n highest materialized counters, highest first.
func (s *State) HighEdge(n int) Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, len(s.spans))
	e := Edge{}
	for i := 0; i < n; i++ {
		s.collect(&e, s.tail-int64(i))
	}
	return e
}

// LowEdge returns the n lowest materialized counters, lowest first.
func (s *State) LowEdge(n int) Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = min(n, len(s.spans))
	e := Edge{}
	for i := 0; i < n; i++ {
		s.collect(&e, s.head+int64(i))
	}
	return e
}

func (s *State) collect(e *Edge, c int64) {
	e.Counters = append(e.Counters, c)
	e.Identities = append(e.Identities, s.identities[c])
	// A counter without a span contributes no lines.
	if sp, ok := s.spans[c]; ok {
		e.Lines += sp.Lines()
	}
}

// Remove deletes counters from the window. Only counters at an edge keep the
// window contiguous; callers remove edge snapshots taken from HighEdge or LowEdge.
func (s *State) Remove(counters []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range counters {
		sp, ok := s.spans[c]
		if !ok {
			continue
		}
		s.lines -= sp.Lines()
		delete(s.spans, c)
		delete(s.identities, c)
		if len(s.spans) == 0 {
			s.head, s.tail = 0, 0
			continue
		}
		if c == s.head {
			s.head++
		}
		if c == s.tail {
			s.tail--
		}
	}
}

// Clear empties the window.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.spans)
	clear(s.identities)
	s.head, s.tail, s.lines = 0, 0, 0
}

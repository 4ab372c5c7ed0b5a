package slidingwindow

import "context"

// Record is one entry of the job output log.
type Record struct {
	// Counter is the record's position in the log's total order. Assigned by the source.
	Counter int64
	// StartLine and EndLine are the half-open range of buffer lines the record occupies.
	StartLine int64
	EndLine   int64
	// Identity addresses the record in the sink independently of its line span.
	Identity string
	Stdout   string
}

// Span returns the record's line span.
func (r Record) Span() Span {
	return Span{Start: r.StartLine, End: r.EndLine}
}

// Span is a half-open range of presentation buffer lines.
type Span struct {
	Start int64
	End   int64
}

// Lines returns the number of buffer lines covered by the span.
func (s Span) Lines() int64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Source supplies records and reports the log's current maximum counter.
type Source interface {
	MaxCounter() int64
	// FetchRange returns the records with counters in r, both ends inclusive, in ascending order.
	FetchRange(ctx context.Context, r Range) ([]Record, error)
	FirstPage(ctx context.Context) ([]Record, error)
	LastPage(ctx context.Context) ([]Record, error)
	ResetCache()
}

// Sink materializes records into a presentation buffer.
type Sink interface {
	AppendLines(ctx context.Context, records []Record) error
	PrependLines(ctx context.Context, records []Record) error
	EvictHighLines(ctx context.Context, count int64) error
	EvictLowLines(ctx context.Context, count int64) error
	RemoveRecord(ctx context.Context, identity string) error
}

// Measurer reports the sink's current content height. It must not block.
type Measurer interface {
	CurrentHeight() int
}

// Measurement is the sink height observed by a reconciliation. Callers anchor
// their scroll position against it.
type Measurement int

package slidingwindow

import (
	"context"
	"fmt"

	"github.com/ava-labs/logwindow/pkg/metrics"
)

// GrowHigh materializes records above the window tail. Records that would
// put the tail more than the event limit above the head are dropped.
func (m *Manager) GrowHigh(ctx context.Context, records []Record) (Measurement, error) {
	return m.seq.Do(ctx, metrics.OpGrowHigh, func(ctx context.Context) (Measurement, error) {
		measurement := m.measure()
		return measurement, m.growHigh(ctx, records)
	})
}

// GrowLow materializes records below the window head. Records that would
// put the head more than the event limit below the tail are dropped.
func (m *Manager) GrowLow(ctx context.Context, records []Record) (Measurement, error) {
	return m.seq.Do(ctx, metrics.OpGrowLow, func(ctx context.Context) (Measurement, error) {
		measurement := m.measure()
		return measurement, m.growLow(ctx, records)
	})
}

// ShrinkHigh evicts the n highest materialized records.
func (m *Manager) ShrinkHigh(ctx context.Context, n int) (Measurement, error) {
	return m.seq.Do(ctx, metrics.OpShrinkHigh, func(ctx context.Context) (Measurement, error) {
		err := m.shrinkHigh(ctx, n)
		return m.measure(), err
	})
}

// ShrinkLow evicts the n lowest materialized records.
func (m *Manager) ShrinkLow(ctx context.Context, n int) (Measurement, error) {
	return m.seq.Do(ctx, metrics.OpShrinkLow, func(ctx context.Context) (Measurement, error) {
		err := m.shrinkLow(ctx, n)
		return m.measure(), err
	})
}

func (m *Manager) growHigh(ctx context.Context, records []Record) error {
	tail := m.state.Tail()
	fresh := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Counter > tail {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	// Records past the event limit above the head are not materialized.
	low := fresh[0].Counter
	if m.state.Count() > 0 {
		low = m.state.Head()
	}
	fresh = keep(fresh, func(r Record) bool { return r.Counter <= low+m.eventLimit })
	if len(fresh) == 0 {
		return nil
	}

	if err := m.checkAdjacent(fresh, tail+1, m.state.Count() > 0); err != nil {
		m.metrics.RecordEdgeOp(metrics.OpGrowHigh, err, 0)
		return err
	}
	if err := m.sink.AppendLines(ctx, fresh); err != nil {
		m.metrics.RecordEdgeOp(metrics.OpGrowHigh, err, 0)
		m.metrics.IncError(metrics.ErrTypeSink)
		return fmt.Errorf("failed to append lines for %d records: %w", len(fresh), err)
	}
	if err := m.insert(fresh); err != nil {
		m.metrics.RecordEdgeOp(metrics.OpGrowHigh, err, 0)
		return err
	}

	m.metrics.RecordEdgeOp(metrics.OpGrowHigh, nil, len(fresh))
	m.updateWindowMetrics()
	return nil
}

func (m *Manager) growLow(ctx context.Context, records []Record) error {
	current := m.state.Range()
	occupied := m.state.Count() > 0
	fresh := make([]Record, 0, len(records))
	for _, r := range records {
		if occupied && r.Counter >= current.Low && r.Counter <= current.High {
			continue
		}
		fresh = append(fresh, r)
	}
	if len(fresh) == 0 {
		return nil
	}
	high := fresh[len(fresh)-1].Counter
	if occupied {
		high = current.High
	}
	fresh = keep(fresh, func(r Record) bool { return r.Counter >= high-m.eventLimit })
	if len(fresh) == 0 {
		return nil
	}

	next := current.Low - int64(len(fresh))
	if err := m.checkAdjacent(fresh, next, occupied); err != nil {
		m.metrics.RecordEdgeOp(metrics.OpGrowLow, err, 0)
		return err
	}
	if err := m.sink.PrependLines(ctx, fresh); err != nil {
		m.metrics.RecordEdgeOp(metrics.OpGrowLow, err, 0)
		m.metrics.IncError(metrics.ErrTypeSink)
		return fmt.Errorf("failed to prepend lines for %d records: %w", len(fresh), err)
	}
	// Insert downwards so every record adjoins the current head.
	for i := len(fresh) - 1; i >= 0; i-- {
		if err := m.state.Insert(fresh[i]); err != nil {
			m.metrics.RecordEdgeOp(metrics.OpGrowLow, err, 0)
			return fmt.Errorf("failed to insert record %d: %w", fresh[i].Counter, err)
		}
	}

	m.metrics.RecordEdgeOp(metrics.OpGrowLow, nil, len(fresh))
	m.updateWindowMetrics()
	return nil
}

func keep(records []Record, fn func(Record) bool) []Record {
	out := records[:0]
	for _, r := range records {
		if fn(r) {
			out = append(out, r)
		}
	}
	return out
}

// checkAdjacent verifies records are ascending and consecutive. When the window
// is occupied the first record must also carry counter first.
func (m *Manager) checkAdjacent(records []Record, first int64, occupied bool) error {
	if occupied && records[0].Counter != first {
		m.metrics.IncError(metrics.ErrTypeNotContiguous)
		return fmt.Errorf("%w: expected counter %d, got %d", ErrNotContiguous, first, records[0].Counter)
	}
	if records[0].Counter < 1 {
		m.metrics.IncError(metrics.ErrTypeNotContiguous)
		return fmt.Errorf("%w: counter %d is below 1", ErrNotContiguous, records[0].Counter)
	}
	for i := 1; i < len(records); i++ {
		if records[i].Counter != records[i-1].Counter+1 {
			m.metrics.IncError(metrics.ErrTypeNotContiguous)
			return fmt.Errorf("%w: counter %d follows %d", ErrNotContiguous, records[i].Counter, records[i-1].Counter)
		}
	}
	return nil
}

func (m *Manager) insert(records []Record) error {
	for _, r := range records {
		if err := m.state.Insert(r); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", r.Counter, err)
		}
	}
	return nil
}

func (m *Manager) shrinkHigh(ctx context.Context, n int) error {
	if n <= 0 || m.state.Count() == 0 {
		return nil
	}
	edge := m.state.HighEdge(n)
	if err := m.sink.EvictHighLines(ctx, edge.Lines); err != nil {
		m.metrics.RecordEdgeOp(metrics.OpShrinkHigh, err, 0)
		m.metrics.IncError(metrics.ErrTypeSink)
		return fmt.Errorf("failed to evict %d high lines: %w", edge.Lines, err)
	}
	return m.forget(ctx, metrics.OpShrinkHigh, edge)
}

func (m *Manager) shrinkLow(ctx context.Context, n int) error {
	if n <= 0 || m.state.Count() == 0 {
		return nil
	}
	edge := m.state.LowEdge(n)
	if err := m.sink.EvictLowLines(ctx, edge.Lines); err != nil {
		m.metrics.RecordEdgeOp(metrics.OpShrinkLow, err, 0)
		m.metrics.IncError(metrics.ErrTypeSink)
		return fmt.Errorf("failed to evict %d low lines: %w", edge.Lines, err)
	}
	return m.forget(ctx, metrics.OpShrinkLow, edge)
}

// forget drops evicted records from the state and the sink's record addressing.
// The state follows the sink's lines even if an identity cannot be removed.
func (m *Manager) forget(ctx context.Context, op string, edge Edge) error {
	m.state.Remove(edge.Counters)
	m.updateWindowMetrics()

	for _, id := range edge.Identities {
		if err := m.sink.RemoveRecord(ctx, id); err != nil {
			m.metrics.RecordEdgeOp(op, err, 0)
			m.metrics.IncError(metrics.ErrTypeSink)
			return fmt.Errorf("failed to remove record %q: %w", id, err)
		}
	}
	m.metrics.RecordEdgeOp(op, nil, len(edge.Counters))
	return nil
}

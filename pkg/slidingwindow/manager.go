package slidingwindow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/logwindow/pkg/metrics"
	"go.uber.org/zap"
)

// Config holds the limits consumed by the Manager.
type Config struct {
	EventLimit int // maximum span of the window (tail - head)
	PageSize   int // default paging displacement
	MaxPending int // maximum unfinished steps in the sequencer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EventLimit: 1000,
		PageSize:   50,
		MaxPending: 64,
	}
}

// Manager owns the window state and serializes every mutation of it through
// a Sequencer. Reads (Head, Tail, Range, ...) may be called from any goroutine.
type Manager struct {
	log      *zap.SugaredLogger
	state    *State
	source   Source
	sink     Sink
	measurer Measurer
	seq      *Sequencer
	metrics  *metrics.Metrics

	eventLimit int64
	pageSize   int64
}

// NewManager creates a Manager and returns an error if arguments are invalid.
// It clears the source cache; the window starts empty.
// Constraints: eventLimit>0; 0<pageSize<=eventLimit; maxPending>0.
func NewManager(
	log *zap.SugaredLogger,
	source Source,
	sink Sink,
	measurer Measurer,
	cfg Config,
	m *metrics.Metrics,
) (*Manager, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if source == nil {
		return nil, errors.New("invalid source: must not be nil")
	}
	if sink == nil {
		return nil, errors.New("invalid sink: must not be nil")
	}
	if measurer == nil {
		return nil, errors.New("invalid measurer: must not be nil")
	}
	if cfg.EventLimit <= 0 {
		return nil, errors.New("invalid event limit: must be greater than 0")
	}
	if cfg.PageSize <= 0 || cfg.PageSize > cfg.EventLimit {
		return nil, errors.New("invalid page size: must be greater than 0 and at most the event limit")
	}

	seq, err := NewSequencer(log, cfg.MaxPending, m)
	if err != nil {
		return nil, err
	}

	source.ResetCache()

	return &Manager{
		log:        log,
		state:      NewState(),
		source:     source,
		sink:       sink,
		measurer:   measurer,
		seq:        seq,
		metrics:    m,
		eventLimit: int64(cfg.EventLimit),
		pageSize:   int64(cfg.PageSize),
	}, nil
}

// Run executes queued window operations until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	return m.seq.Run(ctx)
}

// State returns the window state for read-only inspection.
func (m *Manager) State() *State {
	return m.state
}

// Head returns the lowest materialized counter, or 0 if the window is empty.
func (m *Manager) Head() int64 { return m.state.Head() }

// Tail returns the highest materialized counter, or 0 if the window is empty.
func (m *Manager) Tail() int64 { return m.state.Tail() }

// Range returns [Head, Tail].
func (m *Manager) Range() Range { return m.state.Range() }

// Count returns the number of materialized records.
func (m *Manager) Count() int { return m.state.Count() }

// PageSize returns the default paging step.
func (m *Manager) PageSize() int64 { return m.pageSize }

// Capacity returns how many more counters the window may hold, never below 0.
// The event limit bounds tail-head, so a full window holds EventLimit+1 records.
func (m *Manager) Capacity() int {
	return m.state.Capacity(int(m.eventLimit))
}

// MaxCounter returns the end of the log as far as the window knows. It is
// never below the window tail.
func (m *Manager) MaxCounter() int64 {
	return max(m.source.MaxCounter(), m.state.Tail())
}

// Move reconciles the window towards target and returns the sink height
// measured after trimming and before growing. A target wider than the event
// limit keeps its low edge and is cut at the high end.
func (m *Manager) Move(ctx context.Context, target Range) (Measurement, error) {
	return m.seq.Do(ctx, "move", func(ctx context.Context) (Measurement, error) {
		return m.move(ctx, target)
	})
}

func (m *Manager) move(ctx context.Context, target Range) (Measurement, error) {
	target = Clamp(target, Range{Low: 1, High: m.MaxCounter()})
	if target.Empty() {
		return m.measure(), nil
	}
	if target.Width() > m.eventLimit {
		target.High = target.Low + m.eventLimit
	}

	current := m.state.Range()
	dLow, dHigh, ok := OverlapVector(current, target)
	if !ok {
		m.log.Debugw("reloading window", "from", current, "to", target)
		if err := m.shrinkLow(ctx, m.state.Count()); err != nil {
			return 0, err
		}
		measurement := m.measure()
		records, err := m.fetch(ctx, "range", func(ctx context.Context) ([]Record, error) {
			return m.source.FetchRange(ctx, target)
		})
		if err != nil {
			return 0, err
		}
		if err := m.growHigh(ctx, records); err != nil {
			return 0, err
		}
		return measurement, nil
	}

	m.log.Debugw("patching window", "from", current, "to", target, "dLow", dLow, "dHigh", dHigh)
	head, tail := current.Low, current.High
	if dLow < 0 {
		if err := m.shrinkLow(ctx, int(-dLow)); err != nil {
			return 0, err
		}
	}
	if dHigh < 0 {
		if err := m.shrinkHigh(ctx, int(-dHigh)); err != nil {
			return 0, err
		}
	}

	// Anchor against the trimmed buffer; growth below is purely additive.
	measurement := m.measure()

	if dLow > 0 {
		records, err := m.fetch(ctx, "range", func(ctx context.Context) ([]Record, error) {
			return m.source.FetchRange(ctx, Range{Low: head - dLow, High: head})
		})
		if err != nil {
			return 0, err
		}
		if err := m.growLow(ctx, records); err != nil {
			return 0, err
		}
	}
	if dHigh > 0 {
		records, err := m.fetch(ctx, "range", func(ctx context.Context) ([]Record, error) {
			return m.source.FetchRange(ctx, Range{Low: tail, High: tail + dHigh})
		})
		if err != nil {
			return 0, err
		}
		if err := m.growHigh(ctx, records); err != nil {
			return 0, err
		}
	}
	return measurement, nil
}

func (m *Manager) measure() Measurement {
	return Measurement(m.measurer.CurrentHeight())
}

func (m *Manager) fetch(
	ctx context.Context,
	call string,
	fn func(ctx context.Context) ([]Record, error),
) ([]Record, error) {
	start := time.Now()
	records, err := fn(ctx)
	m.metrics.RecordFetch(call, err, time.Since(start).Seconds(), len(records))
	if err != nil {
		m.metrics.IncError(metrics.ErrTypeSource)
		return nil, fmt.Errorf("failed to fetch %s: %w", call, err)
	}
	return records, nil
}

func (m *Manager) updateWindowMetrics() {
	r := m.state.Range()
	m.metrics.UpdateWindowMetrics(r.Low, r.High, m.state.Count(), m.state.Lines())
}

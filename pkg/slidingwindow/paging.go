package slidingwindow

import "context"

// Advance moves the window towards the end of the log by up to step counters,
// raising the head as needed to keep tail-head within the event limit.
func (m *Manager) Advance(ctx context.Context, step int64) (Measurement, error) {
	return m.seq.Do(ctx, "advance", func(ctx context.Context) (Measurement, error) {
		return m.advance(ctx, step)
	})
}

// Retreat moves the window towards the start of the log by up to step counters,
// lowering the tail as needed to keep tail-head within the event limit.
func (m *Manager) Retreat(ctx context.Context, step int64) (Measurement, error) {
	return m.seq.Do(ctx, "retreat", func(ctx context.Context) (Measurement, error) {
		return m.retreat(ctx, step)
	})
}

// ShiftHead moves only the low edge by delta, never below 1, past the tail, or
// further than the event limit below the tail.
func (m *Manager) ShiftHead(ctx context.Context, delta int64) (Measurement, error) {
	return m.seq.Do(ctx, "shift_head", func(ctx context.Context) (Measurement, error) {
		return m.shiftHead(ctx, delta)
	})
}

// ShiftTail moves only the high edge by delta. A positive delta is capped by
// the room left in the log and by the event limit above the head; a negative
// delta is applied in full.
func (m *Manager) ShiftTail(ctx context.Context, delta int64) (Measurement, error) {
	return m.seq.Do(ctx, "shift_tail", func(ctx context.Context) (Measurement, error) {
		return m.shiftTail(ctx, delta)
	})
}

// Reset evicts the whole window.
func (m *Manager) Reset(ctx context.Context) (Measurement, error) {
	return m.seq.Do(ctx, "reset", func(ctx context.Context) (Measurement, error) {
		if err := m.reset(ctx); err != nil {
			return 0, err
		}
		return m.measure(), nil
	})
}

// JumpToStart reloads the window with the first page of the log followed by
// one more page.
func (m *Manager) JumpToStart(ctx context.Context) (Measurement, error) {
	return m.seq.Do(ctx, "jump_to_start", func(ctx context.Context) (Measurement, error) {
		if err := m.reset(ctx); err != nil {
			return 0, err
		}
		records, err := m.fetch(ctx, "first_page", m.source.FirstPage)
		if err != nil {
			return 0, err
		}
		if err := m.growHigh(ctx, records); err != nil {
			return 0, err
		}
		return m.shiftTail(ctx, m.pageSize)
	})
}

// JumpToEnd reloads the window with the last page of the log preceded by one
// more page.
func (m *Manager) JumpToEnd(ctx context.Context) (Measurement, error) {
	return m.seq.Do(ctx, "jump_to_end", func(ctx context.Context) (Measurement, error) {
		if err := m.reset(ctx); err != nil {
			return 0, err
		}
		records, err := m.fetch(ctx, "last_page", m.source.LastPage)
		if err != nil {
			return 0, err
		}
		if err := m.growLow(ctx, records); err != nil {
			return 0, err
		}
		return m.shiftHead(ctx, -m.pageSize)
	})
}

func (m *Manager) advance(ctx context.Context, step int64) (Measurement, error) {
	r := m.state.Range()
	tailRoom := m.MaxCounter() - r.High
	tailDelta := min(tailRoom, step)
	newTail := r.High + tailDelta

	var headDelta int64
	if newTail-r.Low > m.eventLimit {
		headDelta = (newTail - m.eventLimit) - r.Low
	}
	return m.move(ctx, Range{Low: r.Low + headDelta, High: newTail})
}

func (m *Manager) retreat(ctx context.Context, step int64) (Measurement, error) {
	r := m.state.Range()
	headRoom := max(r.Low-1, 0)
	headDelta := min(headRoom, step)
	newHead := r.Low - headDelta

	var tailDelta int64
	if r.High-newHead > m.eventLimit {
		tailDelta = r.High - (newHead + m.eventLimit)
	}
	return m.move(ctx, Range{Low: newHead, High: r.High - tailDelta})
}

func (m *Manager) shiftHead(ctx context.Context, delta int64) (Measurement, error) {
	r := m.state.Range()
	newHead := min(max(r.Low+delta, 1, r.High-m.eventLimit), r.High)
	return m.move(ctx, Range{Low: newHead, High: r.High})
}

func (m *Manager) shiftTail(ctx context.Context, delta int64) (Measurement, error) {
	r := m.state.Range()
	tailRoom := m.MaxCounter() - r.High
	tailDelta := min(tailRoom, delta)
	newTail := min(r.High+tailDelta, max(r.Low, 1)+m.eventLimit)
	return m.move(ctx, Range{Low: r.Low, High: newTail})
}

func (m *Manager) reset(ctx context.Context) error {
	if n := m.state.Count(); n > 0 {
		return m.shrinkLow(ctx, n)
	}
	return nil
}

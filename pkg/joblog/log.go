// Package joblog holds job output logs in memory and serves them to a sliding
// window as a counter-numbered Source.
package joblog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"github.com/google/uuid"
)

// ErrOutOfOrder is returned when a record would leave a gap in the log.
var ErrOutOfOrder = errors.New("record counter is not the next counter of the log")

var _ slidingwindow.Source = (*Log)(nil)

// Log is an append-only, thread-safe record store. Counters start at 1 and
// records[i] carries counter i+1.
type Log struct {
	mu       sync.RWMutex
	records  []slidingwindow.Record
	pageSize int64

	// First page, memoized once it is full; dropped by ResetCache.
	firstPage []slidingwindow.Record

	notify chan struct{}
}

// New creates an empty Log serving pages of pageSize records.
func New(pageSize int) (*Log, error) {
	if pageSize <= 0 {
		return nil, errors.New("invalid page size: must be greater than 0")
	}
	return &Log{
		pageSize: int64(pageSize),
		notify:   make(chan struct{}, 1),
	}, nil
}

// Append adds stdout as the next record and returns it. The record occupies one
// buffer line per line of stdout, a trailing newline excluded.
func (l *Log) Append(stdout string) slidingwindow.Record {
	l.mu.Lock()
	r := slidingwindow.Record{
		Counter:  int64(len(l.records)) + 1,
		Identity: uuid.NewString(),
		Stdout:   stdout,
	}
	r.StartLine = l.endLineLocked()
	r.EndLine = r.StartLine + LineCount(stdout)
	l.records = append(l.records, r)
	l.mu.Unlock()

	l.signal()
	return r
}

// AppendRecord adds an externally numbered record. Records already in the log
// are ignored and reported with false. A missing identity or line span is filled in.
func (l *Log) AppendRecord(r slidingwindow.Record) (bool, error) {
	l.mu.Lock()
	next := int64(len(l.records)) + 1
	if r.Counter < next {
		l.mu.Unlock()
		return false, nil
	}
	if r.Counter != next {
		l.mu.Unlock()
		return false, fmt.Errorf("%w: want %d, got %d", ErrOutOfOrder, next, r.Counter)
	}
	if r.Identity == "" {
		r.Identity = uuid.NewString()
	}
	if r.StartLine == 0 && r.EndLine == 0 {
		r.StartLine = l.endLineLocked()
		r.EndLine = r.StartLine + LineCount(r.Stdout)
	}
	l.records = append(l.records, r)
	l.mu.Unlock()

	l.signal()
	return true, nil
}

func (l *Log) endLineLocked() int64 {
	if len(l.records) == 0 {
		return 0
	}
	return l.records[len(l.records)-1].EndLine
}

func (l *Log) signal() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Notify returns a channel that receives a value after the log grows.
// Signals are coalesced: one receive may stand for many appends.
func (l *Log) Notify() <-chan struct{} {
	return l.notify
}

// Lines returns the total number of buffer lines in the log.
func (l *Log) Lines() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.endLineLocked()
}

// MaxCounter returns the counter of the last record, or 0 if the log is empty.
func (l *Log) MaxCounter() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.records))
}

// FetchRange returns the records with counters in r, both ends inclusive.
func (l *Log) FetchRange(ctx context.Context, r slidingwindow.Range) ([]slidingwindow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sliceLocked(r), nil
}

// FirstPage returns the first page of the log.
func (l *Log) FirstPage(ctx context.Context) ([]slidingwindow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.firstPage != nil {
		return l.firstPage, nil
	}
	page := l.sliceLocked(slidingwindow.Range{Low: 1, High: l.pageSize})
	if int64(len(page)) == l.pageSize {
		l.firstPage = page
	}
	return page, nil
}

// LastPage returns the last page of the log.
func (l *Log) LastPage(ctx context.Context) ([]slidingwindow.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	last := int64(len(l.records))
	return l.sliceLocked(slidingwindow.Range{Low: last - l.pageSize + 1, High: last}), nil
}

// ResetCache drops memoized pages.
func (l *Log) ResetCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.firstPage = nil
}

func (l *Log) sliceLocked(r slidingwindow.Range) []slidingwindow.Record {
	r = slidingwindow.Clamp(r, slidingwindow.Range{Low: 1, High: int64(len(l.records))})
	if r.Empty() {
		return nil
	}
	out := make([]slidingwindow.Record, r.High-r.Low+1)
	copy(out, l.records[r.Low-1:r.High])
	return out
}

// LineCount returns the number of buffer lines stdout occupies: one per line,
// a trailing newline excluded, and at least one.
func LineCount(stdout string) int64 {
	stdout = strings.TrimSuffix(stdout, "\n")
	return int64(strings.Count(stdout, "\n")) + 1
}

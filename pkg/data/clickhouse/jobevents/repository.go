// Package jobevents stores job output events in ClickHouse and serves one
// job's events to a sliding window.
package jobevents

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ava-labs/logwindow/pkg/clickhouse"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"go.uber.org/zap"
)

var _ slidingwindow.Source = (*Repository)(nil)

// Repository reads and writes the events of a single job.
// MaxCounter is served from a cached value refreshed by Refresh, Poll and
// every fetch, so the window never blocks on it.
type Repository struct {
	client   clickhouse.Client
	log      *zap.SugaredLogger
	table    string
	jobID    string
	pageSize int64

	maxCounter atomic.Int64
}

// NewRepository creates a Repository for jobID's events in table.
func NewRepository(
	client clickhouse.Client,
	log *zap.SugaredLogger,
	table string,
	jobID string,
	pageSize int,
) (*Repository, error) {
	if client == nil {
		return nil, errors.New("invalid client: must not be nil")
	}
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if table == "" {
		return nil, errors.New("invalid table: must not be empty")
	}
	if jobID == "" {
		return nil, errors.New("invalid job id: must not be empty")
	}
	if pageSize <= 0 {
		return nil, errors.New("invalid page size: must be greater than 0")
	}
	return &Repository{
		client:   client,
		log:      log,
		table:    table,
		jobID:    jobID,
		pageSize: int64(pageSize),
	}, nil
}

// Initialize creates the events table if it does not exist.
func (r *Repository) Initialize(ctx context.Context) error {
	if err := r.client.Conn().Exec(ctx, CreateTableQuery(r.table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", r.table, err)
	}
	return nil
}

// Insert writes records for the repository's job in one batch.
func (r *Repository) Insert(ctx context.Context, records []slidingwindow.Record) error {
	if len(records) == 0 {
		return nil
	}
	batch, err := r.client.Conn().PrepareBatch(ctx, InsertQueryForBatch(r.table))
	if err != nil {
		return fmt.Errorf("failed to prepare events batch: %w", err)
	}
	for _, rec := range records {
		if err := batch.Append(r.jobID, rec.Counter, rec.StartLine, rec.EndLine, rec.Identity, rec.Stdout); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append event %d: %w", rec.Counter, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send events batch: %w", err)
	}
	r.observe(records[len(records)-1].Counter)
	return nil
}

// Refresh reloads the job's highest counter.
func (r *Repository) Refresh(ctx context.Context) (int64, error) {
	var maxCounter int64
	if err := r.client.Conn().QueryRow(ctx, MaxCounterQuery(r.table), r.jobID).Scan(&maxCounter); err != nil {
		return 0, fmt.Errorf("failed to read max counter: %w", err)
	}
	r.maxCounter.Store(maxCounter)
	return maxCounter, nil
}

// Poll refreshes the highest counter every interval until ctx is done.
// onGrow is called after each refresh that raised it.
func (r *Repository) Poll(ctx context.Context, interval time.Duration, onGrow func(maxCounter int64)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			before := r.MaxCounter()
			after, err := r.Refresh(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.log.Warnw("failed to poll job events", "job_id", r.jobID, "error", err)
				}
				continue
			}
			if after > before && onGrow != nil {
				onGrow(after)
			}
		}
	}
}

// MaxCounter returns the cached highest counter.
func (r *Repository) MaxCounter() int64 {
	return r.maxCounter.Load()
}

// ResetCache forgets the cached highest counter until the next refresh or fetch.
func (r *Repository) ResetCache() {
	r.maxCounter.Store(0)
}

// FetchRange returns the job's events with counters in rg, both ends inclusive.
func (r *Repository) FetchRange(ctx context.Context, rg slidingwindow.Range) ([]slidingwindow.Record, error) {
	if rg.Empty() {
		return nil, nil
	}
	rows, err := r.client.Conn().Query(ctx, RangeQuery(r.table), r.jobID, rg.Low, rg.High)
	if err != nil {
		return nil, fmt.Errorf("failed to query events %s: %w", rg, err)
	}
	return r.scan(rows)
}

// FirstPage returns the job's first page of events.
func (r *Repository) FirstPage(ctx context.Context) ([]slidingwindow.Record, error) {
	rows, err := r.client.Conn().Query(ctx, FirstPageQuery(r.table), r.jobID, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query first page: %w", err)
	}
	return r.scan(rows)
}

// LastPage returns the job's last page of events in ascending order.
func (r *Repository) LastPage(ctx context.Context) ([]slidingwindow.Record, error) {
	rows, err := r.client.Conn().Query(ctx, LastPageQuery(r.table), r.jobID, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query last page: %w", err)
	}
	records, err := r.scan(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(records)
	return records, nil
}

func (r *Repository) scan(rows driver.Rows) ([]slidingwindow.Record, error) {
	defer rows.Close()
	var (
		records []slidingwindow.Record
		highest int64
	)
	for rows.Next() {
		var rec slidingwindow.Record
		if err := rows.Scan(&rec.Counter, &rec.StartLine, &rec.EndLine, &rec.Identity, &rec.Stdout); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		highest = max(highest, rec.Counter)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	r.observe(highest)
	return records, nil
}

// observe raises the cached highest counter to c.
func (r *Repository) observe(c int64) {
	for {
		cur := r.maxCounter.Load()
		if c <= cur || r.maxCounter.CompareAndSwap(cur, c) {
			return
		}
	}
}

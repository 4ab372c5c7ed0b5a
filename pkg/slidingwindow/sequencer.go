package slidingwindow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ava-labs/logwindow/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrStopped is returned for steps submitted to, or abandoned by, a stopped sequencer.
var ErrStopped = errors.New("sequencer stopped")

// Step is one unit of serialized work. It runs on the sequencer goroutine.
type Step func(ctx context.Context) (Measurement, error)

// Result is the settled outcome of a step.
type Result struct {
	Measurement Measurement
	Err         error
}

type job struct {
	name string
	run  Step
	done chan Result
}

// Sequencer executes steps strictly one at a time, in submission order.
// A failed step is reported to its caller and does not affect later steps.
// Steps are never cancelled once submitted.
type Sequencer struct {
	log     *zap.SugaredLogger
	metrics *metrics.Metrics

	jobs chan job
	// Bounds queued plus running steps; Submit blocks while the queue is full.
	pending *semaphore.Weighted

	stopped chan struct{}
	once    sync.Once
}

// NewSequencer creates a Sequencer that holds at most maxPending unfinished steps.
func NewSequencer(log *zap.SugaredLogger, maxPending int, m *metrics.Metrics) (*Sequencer, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if maxPending <= 0 {
		return nil, errors.New("invalid max pending: must be greater than 0")
	}
	return &Sequencer{
		log:     log,
		metrics: m,
		jobs:    make(chan job, maxPending),
		pending: semaphore.NewWeighted(int64(maxPending)),
		stopped: make(chan struct{}),
	}, nil
}

// Run executes submitted steps until ctx is done. Steps still queued when Run
// returns are abandoned and their callers receive ErrStopped.
func (s *Sequencer) Run(ctx context.Context) error {
	defer s.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-s.jobs:
			s.execute(ctx, j)
		}
	}
}

func (s *Sequencer) stop() {
	s.once.Do(func() { close(s.stopped) })
}

func (s *Sequencer) execute(ctx context.Context, j job) {
	defer func() {
		s.pending.Release(1)
		s.metrics.DecPending()
	}()

	start := time.Now()
	m, err := j.run(ctx)
	s.metrics.RecordStep(j.name, err, time.Since(start).Seconds())
	if err != nil {
		s.log.Warnw("window step failed", "step", j.name, "error", err)
	}
	j.done <- Result{Measurement: m, Err: err}
}

// Submit enqueues a step and returns a channel that receives its result once it
// settles. ctx only bounds the wait for queue space.
func (s *Sequencer) Submit(ctx context.Context, name string, step Step) (<-chan Result, error) {
	select {
	case <-s.stopped:
		return nil, ErrStopped
	default:
	}

	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	j := job{name: name, run: step, done: make(chan Result, 1)}
	select {
	case s.jobs <- j:
	case <-s.stopped:
		s.pending.Release(1)
		return nil, ErrStopped
	}
	s.metrics.IncPending()
	return j.done, nil
}

// acquire takes a pending slot, giving up with ErrStopped once the sequencer
// stops.
func (s *Sequencer) acquire(ctx context.Context) error {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopped:
			cancel()
		case <-actx.Done():
		}
	}()
	if err := s.pending.Acquire(actx, 1); err != nil {
		select {
		case <-s.stopped:
			return ErrStopped
		default:
			return err
		}
	}
	return nil
}

// Do submits a step and waits for it to settle. If ctx ends first Do returns
// ctx.Err(), but the step still runs.
func (s *Sequencer) Do(ctx context.Context, name string, step Step) (Measurement, error) {
	done, err := s.Submit(ctx, name, step)
	if err != nil {
		return 0, err
	}
	select {
	case r := <-done:
		return r.Measurement, r.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.stopped:
		select {
		case r := <-done:
			return r.Measurement, r.Err
		default:
			return 0, ErrStopped
		}
	}
}

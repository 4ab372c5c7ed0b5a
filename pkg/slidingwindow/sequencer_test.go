package slidingwindow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startSequencer(t *testing.T, maxPending int) (*Sequencer, context.CancelFunc, <-chan error) {
	t.Helper()
	seq, err := NewSequencer(zap.NewNop().Sugar(), maxPending, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- seq.Run(ctx) }()
	return seq, cancel, errCh
}

func TestNewSequencer_Validation(t *testing.T) {
	t.Parallel()
	_, err := NewSequencer(nil, 1, nil)
	require.ErrorContains(t, err, "invalid logger")

	_, err = NewSequencer(zap.NewNop().Sugar(), 0, nil)
	require.ErrorContains(t, err, "invalid max pending")
}

func TestSequencer_RunsInSubmissionOrder(t *testing.T) {
	t.Parallel()
	seq, cancel, _ := startSequencer(t, 16)
	defer cancel()

	var (
		mu      sync.Mutex
		order   []int
		running int
		maxSeen int
	)
	results := make([]<-chan Result, 0, 10)
	for i := 0; i < 10; i++ {
		done, err := seq.Submit(t.Context(), "step", func(context.Context) (Measurement, error) {
			mu.Lock()
			running++
			maxSeen = max(maxSeen, running)
			order = append(order, i)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			return Measurement(i), nil
		})
		require.NoError(t, err)
		results = append(results, done)
	}

	for i, done := range results {
		select {
		case r := <-done:
			require.NoError(t, r.Err)
			assert.Equal(t, Measurement(i), r.Measurement)
		case <-time.After(2 * time.Second):
			require.Fail(t, "timeout waiting for step result")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	assert.Equal(t, 1, maxSeen, "at most one step runs at a time")
}

func TestSequencer_FailureDoesNotPoison(t *testing.T) {
	t.Parallel()
	seq, cancel, _ := startSequencer(t, 4)
	defer cancel()

	boom := errors.New("collaborator failed")
	_, err := seq.Do(t.Context(), "fail", func(context.Context) (Measurement, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	m, err := seq.Do(t.Context(), "ok", func(context.Context) (Measurement, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Measurement(7), m)
}

func TestSequencer_StoppedRejectsSubmissions(t *testing.T) {
	t.Parallel()
	seq, cancel, errCh := startSequencer(t, 4)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		require.Fail(t, "timeout waiting for Run to exit")
	}

	_, err := seq.Do(t.Context(), "late", func(context.Context) (Measurement, error) {
		return 0, nil
	})
	require.ErrorIs(t, err, ErrStopped)
}

func TestSequencer_CallerContextDoesNotCancelStep(t *testing.T) {
	t.Parallel()
	seq, cancel, _ := startSequencer(t, 4)
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	ran := make(chan struct{})
	ctx, stop := context.WithCancel(t.Context())

	errCh := make(chan error, 1)
	go func() {
		_, err := seq.Do(ctx, "slow", func(context.Context) (Measurement, error) {
			close(started)
			<-release
			close(ran)
			return 0, nil
		})
		errCh <- err
	}()

	<-started
	stop()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		require.Fail(t, "timeout waiting for Do to return")
	}

	close(release)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		require.Fail(t, "step was abandoned after its caller stopped waiting")
	}
}

func TestSequencer_BoundsPendingSteps(t *testing.T) {
	t.Parallel()
	seq, cancel, _ := startSequencer(t, 1)
	defer cancel()

	release := make(chan struct{})
	defer close(release)
	_, err := seq.Submit(t.Context(), "blocking", func(context.Context) (Measurement, error) {
		<-release
		return 0, nil
	})
	require.NoError(t, err)

	ctx, stop := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer stop()
	_, err = seq.Submit(ctx, "queued", func(context.Context) (Measurement, error) {
		return 0, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSequencer_StopReleasesBlockedSubmit(t *testing.T) {
	t.Parallel()
	seq, err := NewSequencer(zap.NewNop().Sugar(), 1, nil)
	require.NoError(t, err)

	noop := func(context.Context) (Measurement, error) { return 0, nil }
	_, err = seq.Submit(t.Context(), "queued", noop)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := seq.Do(context.Background(), "blocked", noop)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		require.Failf(t, "Do returned while the queue was full", "err: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	seq.stop()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		require.Fail(t, "Submit stayed blocked after the sequencer stopped")
	}
}

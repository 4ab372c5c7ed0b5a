package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ava-labs/logwindow/pkg/buffer"
	"github.com/ava-labs/logwindow/pkg/joblog"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		want    command
		wantErr string
	}{
		{name: "empty line pages forward", line: "", want: command{op: opNext}},
		{name: "blank line pages forward", line: "   ", want: command{op: opNext}},
		{name: "next", line: "n", want: command{op: opNext}},
		{name: "prev", line: "p", want: command{op: opPrev}},
		{name: "start", line: "g", want: command{op: opStart}},
		{name: "end", line: "G", want: command{op: opEnd}},
		{name: "reset", line: "r", want: command{op: opReset}},
		{name: "quit", line: " q ", want: command{op: opQuit}},
		{name: "advance default", line: "j", want: command{op: opAdvance, n: 1}},
		{name: "advance count", line: "j 25", want: command{op: opAdvance, n: 25}},
		{name: "retreat count", line: "k 3", want: command{op: opRetreat, n: 3}},
		{name: "shift head negative", line: "h -4", want: command{op: opShiftHead, n: -4}},
		{name: "shift tail positive", line: "t 7", want: command{op: opShiftTail, n: 7}},
		{name: "unknown", line: "x", wantErr: "unknown command"},
		{name: "too many fields", line: "j 1 2", wantErr: "unknown command"},
		{name: "count on paging command", line: "n 2", wantErr: "takes no count"},
		{name: "zero advance", line: "j 0", wantErr: "greater than 0"},
		{name: "negative retreat", line: "k -1", wantErr: "greater than 0"},
		{name: "shift without count", line: "h", wantErr: "signed count"},
		{name: "bad count", line: "j abc", wantErr: "invalid count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseCommand(tt.line)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// newTestViewer serves records 1..records, one line each, through a window of
// eventLimit 6 and page size 3, showing 3 rows.
func newTestViewer(t *testing.T, records int) (*viewer, *joblog.Log, *bytes.Buffer) {
	t.Helper()
	l, err := joblog.New(3)
	require.NoError(t, err)
	for i := 1; i <= records; i++ {
		l.Append(fmt.Sprintf("line %d", i))
	}

	buf := buffer.New()
	mgr, err := slidingwindow.NewManager(zap.NewNop().Sugar(), l, buf, buf, slidingwindow.Config{
		EventLimit: 6,
		PageSize:   3,
		MaxPending: 8,
	}, nil)
	require.NoError(t, err)
	go func() { _ = mgr.Run(t.Context()) }()

	out := &bytes.Buffer{}
	return &viewer{
		log:   zap.NewNop().Sugar(),
		mgr:   mgr,
		buf:   buf,
		out:   out,
		width: 40,
		rows:  3,
	}, l, out
}

func TestViewer_Exec(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	v, _, _ := newTestViewer(t, 10)

	_, err := v.exec(ctx, command{op: opStart})
	require.NoError(t, err)
	assert.Equal(t, slidingwindow.Range{Low: 1, High: 6}, v.mgr.Range())
	assert.Equal(t, 0, v.top)
	assert.False(t, v.follow)

	// Advancing by a page pushes the head up to keep the span at 6.
	_, err = v.exec(ctx, command{op: opNext})
	require.NoError(t, err)
	assert.Equal(t, slidingwindow.Range{Low: 3, High: 9}, v.mgr.Range())
	assert.Equal(t, 4, v.top, "first appended line is shown")

	_, err = v.exec(ctx, command{op: opPrev})
	require.NoError(t, err)
	assert.Equal(t, slidingwindow.Range{Low: 1, High: 7}, v.mgr.Range())
	assert.Equal(t, 0, v.top)

	_, err = v.exec(ctx, command{op: opShiftHead, n: 2})
	require.NoError(t, err)
	assert.Equal(t, slidingwindow.Range{Low: 3, High: 7}, v.mgr.Range())

	_, err = v.exec(ctx, command{op: opEnd})
	require.NoError(t, err)
	assert.Equal(t, slidingwindow.Range{Low: 5, High: 10}, v.mgr.Range())
	assert.Equal(t, 3, v.top)
	assert.True(t, v.follow)

	_, err = v.exec(ctx, command{op: opReset})
	require.NoError(t, err)
	assert.Equal(t, 0, v.mgr.Count())
	assert.Equal(t, 0, v.buf.CurrentHeight())

	quit, err := v.exec(ctx, command{op: opQuit})
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestViewer_GrownFollowsTail(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	v, l, _ := newTestViewer(t, 10)

	_, err := v.exec(ctx, command{op: opEnd})
	require.NoError(t, err)
	require.True(t, v.follow)

	l.Append("line 11")
	l.Append("line 12")
	require.NoError(t, v.grown(ctx))
	assert.Equal(t, slidingwindow.Range{Low: 6, High: 12}, v.mgr.Range())
	assert.Equal(t, v.maxTop(), v.top)
	assert.True(t, v.follow)
}

func TestViewer_GrownIgnoredWhenNotFollowing(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	v, l, _ := newTestViewer(t, 10)

	_, err := v.exec(ctx, command{op: opStart})
	require.NoError(t, err)

	l.Append("line 11")
	require.NoError(t, v.grown(ctx))
	assert.Equal(t, slidingwindow.Range{Low: 1, High: 6}, v.mgr.Range())
}

func TestViewer_ExecStoppedWindow(t *testing.T) {
	t.Parallel()
	l, err := joblog.New(3)
	require.NoError(t, err)
	buf := buffer.New()
	mgr, err := slidingwindow.NewManager(zap.NewNop().Sugar(), l, buf, buf, slidingwindow.Config{
		EventLimit: 6,
		PageSize:   3,
		MaxPending: 8,
	}, nil)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, mgr.Run(runCtx), context.Canceled)

	v := &viewer{log: zap.NewNop().Sugar(), mgr: mgr, buf: buf, out: &bytes.Buffer{}, rows: 3}
	_, err = v.exec(t.Context(), command{op: opNext})
	require.ErrorIs(t, err, slidingwindow.ErrStopped)
}

func TestViewer_Draw(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	v, _, out := newTestViewer(t, 10)

	_, err := v.exec(ctx, command{op: opStart})
	require.NoError(t, err)
	require.NoError(t, v.draw())
	assert.Equal(t, "line 1\nline 2\nline 3\nrecords 1-6 of 10 | lines 1-3 of 6\n: ", out.String())

	out.Reset()
	require.NoError(t, v.draw())
	assert.Empty(t, out.String(), "unchanged screen is not redrawn")

	v.message = "error: boom"
	require.NoError(t, v.draw())
	assert.Contains(t, out.String(), "| error: boom")
}

func TestViewer_DrawPastEnd(t *testing.T) {
	t.Parallel()
	v, _, out := newTestViewer(t, 2)

	_, err := v.exec(t.Context(), command{op: opStart})
	require.NoError(t, err)
	require.NoError(t, v.draw())
	assert.Equal(t, "line 1\nline 2\n~\nrecords 1-2 of 2 | lines 1-2 of 2 | following\n: ", out.String())
}

func TestInteract(t *testing.T) {
	t.Parallel()
	v, _, out := newTestViewer(t, 10)

	input := make(chan string, 3)
	input <- "n"
	input <- "zzz"
	input <- "q"

	require.NoError(t, interact(t.Context(), v, false, nil, input))
	assert.Equal(t, slidingwindow.Range{Low: 3, High: 9}, v.mgr.Range())
	assert.Contains(t, out.String(), "records 3-9 of 10")
	assert.Contains(t, out.String(), "unknown command")
}

func TestInteract_FollowStartsAtEnd(t *testing.T) {
	t.Parallel()
	v, l, _ := newTestViewer(t, 10)

	input := make(chan string)
	grown := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- interact(t.Context(), v, true, grown, input) }()

	l.Append("line 11")
	grown <- struct{}{}
	close(input)

	require.NoError(t, <-done)
	assert.Equal(t, slidingwindow.Range{Low: 5, High: 11}, v.mgr.Range())
	assert.Equal(t, v.maxTop(), v.top)
	assert.True(t, v.follow)
}

func TestInteract_ContextCanceled(t *testing.T) {
	t.Parallel()
	v, _, _ := newTestViewer(t, 10)

	ctx, cancel := context.WithCancel(t.Context())
	input := make(chan string)
	done := make(chan error, 1)
	go func() { done <- interact(ctx, v, false, nil, input) }()

	input <- "n"
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestReadLines(t *testing.T) {
	t.Parallel()

	var got []string
	for line := range readLines(strings.NewReader("n\nj 3\n\nq\n")) {
		got = append(got, line)
	}
	assert.Equal(t, []string{"n", "j 3", "", "q"}, got)
}

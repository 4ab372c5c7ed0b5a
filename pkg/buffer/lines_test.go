package buffer

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func record(counter, start, end int64, stdout string) slidingwindow.Record {
	return slidingwindow.Record{
		Counter:   counter,
		StartLine: start,
		EndLine:   end,
		Identity:  fmt.Sprintf("id-%d", counter),
		Stdout:    stdout,
	}
}

func TestLines_AppendPrepend(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	b := New()

	require.NoError(t, b.AppendLines(ctx, []slidingwindow.Record{
		record(2, 1, 3, "two a\ntwo b"),
		record(3, 3, 4, "three"),
	}))
	require.NoError(t, b.PrependLines(ctx, []slidingwindow.Record{record(1, 0, 1, "one\n")}))

	assert.Equal(t, []string{"one", "two a", "two b", "three"}, b.Text())
	assert.Equal(t, 4, b.CurrentHeight())
	assert.Equal(t, 3, b.Records())
}

func TestLines_SpanShapesText(t *testing.T) {
	t.Parallel()
	b := New()
	require.NoError(t, b.AppendLines(t.Context(), []slidingwindow.Record{
		record(1, 0, 3, "short"),
		record(2, 3, 4, "too\nmany\nlines"),
	}))
	assert.Equal(t, []string{"short", "", "", "too"}, b.Text())
}

func TestLines_Evict(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	b := New()
	require.NoError(t, b.AppendLines(ctx, []slidingwindow.Record{
		record(1, 0, 1, "a"), record(2, 1, 2, "b"), record(3, 2, 3, "c"), record(4, 3, 4, "d"),
	}))

	require.NoError(t, b.EvictLowLines(ctx, 1))
	require.NoError(t, b.EvictHighLines(ctx, 2))
	assert.Equal(t, []string{"b"}, b.Text())

	err := b.EvictHighLines(ctx, 2)
	require.ErrorIs(t, err, ErrEvictTooMany)
	err = b.EvictLowLines(ctx, 2)
	require.ErrorIs(t, err, ErrEvictTooMany)
	assert.Equal(t, 1, b.CurrentHeight(), "failed evictions leave the buffer untouched")
}

func TestLines_RemoveRecord(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	b := New()
	require.NoError(t, b.AppendLines(ctx, []slidingwindow.Record{record(1, 0, 1, "a")}))

	require.NoError(t, b.RemoveRecord(ctx, "id-1"))
	assert.Equal(t, 0, b.Records())
	require.ErrorIs(t, b.RemoveRecord(ctx, "id-1"), ErrUnknownRecord)
}

func TestLines_Render(t *testing.T) {
	t.Parallel()
	b := New()
	require.NoError(t, b.AppendLines(t.Context(), []slidingwindow.Record{
		record(1, 0, 1, "hello world"),
		record(2, 1, 2, "日本語テキスト"),
		record(3, 2, 3, "ok"),
	}))

	var out bytes.Buffer
	require.NoError(t, b.Render(&out, 6, 0, 4))
	assert.Equal(t, "hello…\n日本…\nok\n~\n", out.String())

	out.Reset()
	require.NoError(t, b.Render(&out, 0, 2, 1))
	assert.Equal(t, "ok\n", out.String(), "width 0 disables truncation")
}

func TestLines_Fingerprint(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	a, b := New(), New()
	recs := []slidingwindow.Record{record(1, 0, 1, "a"), record(2, 1, 2, "b")}
	require.NoError(t, a.AppendLines(ctx, recs))
	require.NoError(t, b.AppendLines(ctx, recs))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	require.NoError(t, b.EvictHighLines(ctx, 1))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

// The buffer must stay in step with the window through a manager.
func TestLines_BacksManager(t *testing.T) {
	t.Parallel()
	src := &memSource{max: 100}
	b := New()
	cfg := slidingwindow.Config{EventLimit: 30, PageSize: 10, MaxPending: 4}
	m, err := slidingwindow.NewManager(zap.NewNop().Sugar(), src, b, b, cfg, nil)
	require.NoError(t, err)
	go func() { _ = m.Run(t.Context()) }()

	ctx := t.Context()
	_, err = m.JumpToStart(ctx)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err = m.Advance(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int(m.State().Lines()), b.CurrentHeight())
		assert.Equal(t, m.Count(), b.Records())
	}
	_, err = m.JumpToEnd(ctx)
	require.NoError(t, err)
	text := b.Text()
	assert.Equal(t, "line 100", text[len(text)-1])
}

type memSource struct{ max int64 }

func (s *memSource) MaxCounter() int64 { return s.max }

func (s *memSource) FetchRange(_ context.Context, r slidingwindow.Range) ([]slidingwindow.Record, error) {
	r = slidingwindow.Clamp(r, slidingwindow.Range{Low: 1, High: s.max})
	var out []slidingwindow.Record
	for c := r.Low; c <= r.High; c++ {
		out = append(out, record(c, c-1, c, fmt.Sprintf("line %d", c)))
	}
	return out, nil
}

func (s *memSource) FirstPage(ctx context.Context) ([]slidingwindow.Record, error) {
	return s.FetchRange(ctx, slidingwindow.Range{Low: 1, High: 10})
}

func (s *memSource) LastPage(ctx context.Context) ([]slidingwindow.Record, error) {
	return s.FetchRange(ctx, slidingwindow.Range{Low: s.max - 9, High: s.max})
}

func (s *memSource) ResetCache() {}

// Package buffer is a line-oriented presentation buffer. It materializes
// window records as text lines and renders a viewport of them to a terminal.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ava-labs/logwindow/pkg/slidingwindow"
	"github.com/cespare/xxhash/v2"
	"github.com/mattn/go-runewidth"
)

var (
	// ErrEvictTooMany is returned when an eviction asks for more lines than the buffer holds.
	ErrEvictTooMany = errors.New("eviction exceeds buffer size")
	// ErrUnknownRecord is returned when removing an identity the buffer never materialized.
	ErrUnknownRecord = errors.New("unknown record identity")
)

const ellipsis = "…"

var (
	_ slidingwindow.Sink     = (*Lines)(nil)
	_ slidingwindow.Measurer = (*Lines)(nil)
)

type line struct {
	id   string
	text string
}

// Lines holds the materialized text of the window, low edge first.
type Lines struct {
	mu      sync.RWMutex
	lines   []line
	records map[string]int64 // identity -> lines materialized
}

// New creates an empty buffer.
func New() *Lines {
	return &Lines{records: make(map[string]int64)}
}

// AppendLines adds the records' lines after the last line.
func (b *Lines) AppendLines(_ context.Context, records []slidingwindow.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, b.expand(records)...)
	return nil
}

// PrependLines adds the records' lines before the first line.
func (b *Lines) PrependLines(_ context.Context, records []slidingwindow.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.expand(records), b.lines...)
	return nil
}

// expand splits each record's stdout into exactly as many lines as its span
// covers, padding with empty lines or dropping the excess.
func (b *Lines) expand(records []slidingwindow.Record) []line {
	var out []line
	for _, r := range records {
		n := r.Span().Lines()
		text := strings.Split(strings.TrimSuffix(r.Stdout, "\n"), "\n")
		for i := int64(0); i < n; i++ {
			l := line{id: r.Identity}
			if i < int64(len(text)) {
				l.text = text[i]
			}
			out = append(out, l)
		}
		b.records[r.Identity] += n
	}
	return out
}

// EvictHighLines removes count lines from the end of the buffer.
func (b *Lines) EvictHighLines(_ context.Context, count int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if count > int64(len(b.lines)) {
		return fmt.Errorf("%w: %d of %d lines", ErrEvictTooMany, count, len(b.lines))
	}
	b.lines = b.lines[:int64(len(b.lines))-count]
	return nil
}

// EvictLowLines removes count lines from the start of the buffer.
func (b *Lines) EvictLowLines(_ context.Context, count int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if count > int64(len(b.lines)) {
		return fmt.Errorf("%w: %d of %d lines", ErrEvictTooMany, count, len(b.lines))
	}
	b.lines = append([]line(nil), b.lines[count:]...)
	return nil
}

// RemoveRecord forgets the identity of an evicted record.
func (b *Lines) RemoveRecord(_ context.Context, identity string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.records[identity]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecord, identity)
	}
	delete(b.records, identity)
	return nil
}

// CurrentHeight returns the number of lines in the buffer.
func (b *Lines) CurrentHeight() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Records returns the number of record identities the buffer tracks.
func (b *Lines) Records() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Text returns the buffer's lines.
func (b *Lines) Text() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.lines))
	for i, l := range b.lines {
		out[i] = l.text
	}
	return out
}

// Render writes rows lines starting at line top, each truncated to width
// display cells. Rows past the end of the buffer are written as "~".
func (b *Lines) Render(w io.Writer, width, top, rows int) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	top = max(top, 0)
	for i := top; i < top+rows; i++ {
		text := "~"
		if i < len(b.lines) {
			text = b.lines[i].text
		}
		if width > 0 && runewidth.StringWidth(text) > width {
			text = runewidth.Truncate(text, width, ellipsis)
		}
		if _, err := io.WriteString(w, text+"\n"); err != nil {
			return fmt.Errorf("failed to render line %d: %w", i, err)
		}
	}
	return nil
}

// Fingerprint hashes the buffer's rows. Equal fingerprints mean a redraw can
// be skipped.
func (b *Lines) Fingerprint() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h := xxhash.New()
	for _, l := range b.lines {
		_, _ = h.WriteString(l.id)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(l.text)
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

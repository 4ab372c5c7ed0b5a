package joblog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ava-labs/logwindow/pkg/metrics"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrTruncated is returned when a followed file becomes shorter than what was
// already read. Counters are never reused, so the follower stops.
var ErrTruncated = errors.New("job output file was truncated")

// DefaultDebounce is how long the follower waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// FileFollower appends lines to a Log as they are written to a plain text file.
// Only complete lines are appended; a trailing partial line waits for its newline.
type FileFollower struct {
	log      *zap.SugaredLogger
	path     string
	dst      *Log
	metrics  *metrics.Metrics
	debounce time.Duration

	offset  int64
	partial []byte
}

// NewFileFollower creates a follower for path. Compressed files cannot be followed.
func NewFileFollower(log *zap.SugaredLogger, path string, dst *Log, m *metrics.Metrics) (*FileFollower, error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if dst == nil {
		return nil, errors.New("invalid log: must not be nil")
	}
	if Compressed(path) {
		return nil, fmt.Errorf("invalid path %s: compressed files cannot be followed", path)
	}
	return &FileFollower{
		log:      log,
		path:     path,
		dst:      dst,
		metrics:  m,
		debounce: DefaultDebounce,
	}, nil
}

// Run reads the file once and then appends new lines until ctx is done. It
// returns ErrTruncated if the file shrinks; other read errors are logged and
// retried on the next write.
func (f *FileFollower) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory so a recreated file is still seen.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}

	if err := f.readNew(); err != nil {
		return err
	}
	f.log.Infow("following job output", "path", f.path, "records", f.dst.MaxCounter())

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				debounce = time.After(f.debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			f.log.Warnw("file watcher error", "path", f.path, "error", err)
		case <-debounce:
			debounce = nil
			if err := f.readNew(); err != nil {
				if errors.Is(err, ErrTruncated) {
					return err
				}
				f.log.Warnw("failed to read job output", "path", f.path, "error", err)
			}
		}
	}
}

func (f *FileFollower) readNew() error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", f.path, err)
	}
	if info.Size() < f.offset {
		f.log.Errorw("job output file shrank", "path", f.path, "size", info.Size(), "offset", f.offset)
		return fmt.Errorf("%s is %d bytes, already read %d: %w", f.path, info.Size(), f.offset, ErrTruncated)
	}

	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek %s: %w", f.path, err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	appended := 0
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		f.dst.Append(string(bytes.TrimSuffix(buf[:i], []byte("\r"))))
		appended++
		buf = buf[i+1:]
	}
	f.partial = append([]byte(nil), buf...)

	if appended > 0 {
		f.metrics.AddRecordsAppended(appended)
		f.log.Debugw("appended job output", "path", f.path, "records", appended)
	}
	return nil
}

package joblog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxLineSize bounds a single line of job output.
const maxLineSize = 4 * 1024 * 1024

// Compressed reports whether path is read through a decompressor.
func Compressed(path string) bool {
	switch filepath.Ext(path) {
	case ".zst", ".gz":
		return true
	}
	return false
}

// OpenFile opens a job output file. Files ending in .zst and .gz are
// decompressed transparently.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	switch filepath.Ext(path) {
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return &decompressor{Reader: dec, close: func() error {
			dec.Close()
			return f.Close()
		}}, nil
	case ".gz":
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return &decompressor{Reader: gz, close: func() error {
			return errors.Join(gz.Close(), f.Close())
		}}, nil
	default:
		return f, nil
	}
}

type decompressor struct {
	io.Reader
	close func() error
}

func (d *decompressor) Close() error { return d.close() }

// ReadLines calls fn for every line of r, without the line terminator.
func ReadLines(r io.Reader, fn func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		if err := fn(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadFile calls fn for every line of the job output file at path.
func ReadFile(path string, fn func(line string) error) error {
	rc, err := OpenFile(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := ReadLines(rc, fn); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// LoadFile appends every line of the file at path to l as its own record and
// returns the number of records added.
func LoadFile(path string, l *Log) (int, error) {
	n := 0
	err := ReadFile(path, func(line string) error {
		l.Append(line)
		n++
		return nil
	})
	return n, err
}

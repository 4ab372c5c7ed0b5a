package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ava-labs/logwindow/pkg/buffer"
	"github.com/ava-labs/logwindow/pkg/slidingwindow"
)

type op int

const (
	opNext op = iota
	opPrev
	opAdvance
	opRetreat
	opStart
	opEnd
	opShiftHead
	opShiftTail
	opReset
	opQuit
)

type command struct {
	op op
	n  int64
}

var errUnknownCommand = errors.New("unknown command")

// parseCommand parses one input line. An empty line pages forward.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{op: opNext}, nil
	}
	if len(fields) > 2 {
		return command{}, fmt.Errorf("%w: %q", errUnknownCommand, line)
	}

	var arg *int64
	if len(fields) == 2 {
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return command{}, fmt.Errorf("invalid count %q: %w", fields[1], err)
		}
		arg = &n
	}

	switch fields[0] {
	case "n", "p", "g", "G", "r", "q":
		if arg != nil {
			return command{}, fmt.Errorf("%w: %q takes no count", errUnknownCommand, fields[0])
		}
		return command{op: map[string]op{
			"n": opNext, "p": opPrev, "g": opStart, "G": opEnd, "r": opReset, "q": opQuit,
		}[fields[0]]}, nil
	case "j", "k":
		n := int64(1)
		if arg != nil {
			n = *arg
		}
		if n <= 0 {
			return command{}, fmt.Errorf("count must be greater than 0, got %d", n)
		}
		if fields[0] == "j" {
			return command{op: opAdvance, n: n}, nil
		}
		return command{op: opRetreat, n: n}, nil
	case "h", "t":
		if arg == nil {
			return command{}, fmt.Errorf("%q needs a signed count", fields[0])
		}
		if fields[0] == "h" {
			return command{op: opShiftHead, n: *arg}, nil
		}
		return command{op: opShiftTail, n: *arg}, nil
	default:
		return command{}, fmt.Errorf("%w: %q", errUnknownCommand, fields[0])
	}
}

// viewer maps commands onto window operations and keeps the scroll position
// anchored to the measurement each operation returns.
type viewer struct {
	log   *zap.SugaredLogger
	mgr   *slidingwindow.Manager
	buf   *buffer.Lines
	out   io.Writer
	width int
	rows  int
	clear bool

	top     int
	follow  bool
	message string

	drawn struct {
		fingerprint uint64
		top         int
		status      string
	}
}

// exec runs cmd. Window failures are shown in the status line; only a stopped
// window is returned as an error.
func (v *viewer) exec(ctx context.Context, cmd command) (quit bool, err error) {
	v.message = ""
	page := v.mgr.PageSize()

	var m slidingwindow.Measurement
	switch cmd.op {
	case opQuit:
		return true, nil
	case opNext:
		m, err = v.mgr.Advance(ctx, page)
		v.top = v.forwardTop(m)
	case opAdvance:
		m, err = v.mgr.Advance(ctx, cmd.n)
		v.top = v.forwardTop(m)
	case opPrev:
		m, err = v.mgr.Retreat(ctx, page)
		v.top = v.backwardTop(m)
	case opRetreat:
		m, err = v.mgr.Retreat(ctx, cmd.n)
		v.top = v.backwardTop(m)
	case opStart:
		_, err = v.mgr.JumpToStart(ctx)
		v.top = 0
	case opEnd:
		_, err = v.mgr.JumpToEnd(ctx)
		v.top = v.maxTop()
	case opShiftHead:
		_, err = v.mgr.ShiftHead(ctx, cmd.n)
		v.top = 0
	case opShiftTail:
		_, err = v.mgr.ShiftTail(ctx, cmd.n)
		v.top = v.maxTop()
	case opReset:
		_, err = v.mgr.Reset(ctx)
		v.top = 0
	}

	v.follow = v.mgr.Tail() == v.mgr.MaxCounter()
	if err != nil {
		if errors.Is(err, slidingwindow.ErrStopped) || ctx.Err() != nil {
			return false, err
		}
		v.log.Warnw("window operation failed", "op", cmd.op, "error", err)
		v.message = "error: " + err.Error()
	}
	return false, nil
}

// grown is called when the log gained records. A window pinned to the end of
// the log keeps following it.
func (v *viewer) grown(ctx context.Context) error {
	if !v.follow {
		return nil
	}
	step := max(v.mgr.MaxCounter()-v.mgr.Tail(), 1)
	_, err := v.exec(ctx, command{op: opAdvance, n: step})
	v.top = v.maxTop()
	return err
}

func (v *viewer) maxTop() int {
	return max(v.buf.CurrentHeight()-v.rows, 0)
}

// forwardTop shows the first line appended by a forward move.
func (v *viewer) forwardTop(m slidingwindow.Measurement) int {
	return min(max(int(m), 0), v.maxTop())
}

// backwardTop shows the page just above the content a backward move kept.
func (v *viewer) backwardTop(m slidingwindow.Measurement) int {
	added := v.buf.CurrentHeight() - int(m)
	return min(max(added-v.rows, 0), v.maxTop())
}

func (v *viewer) status() string {
	r := v.mgr.Range()
	height := v.buf.CurrentHeight()
	s := fmt.Sprintf("records %d-%d of %d | lines %d-%d of %d",
		r.Low, r.High, v.mgr.MaxCounter(),
		min(v.top+1, height), min(v.top+v.rows, height), height)
	if v.follow {
		s += " | following"
	}
	if v.message != "" {
		s += " | " + v.message
	}
	return s
}

// draw renders the visible rows and the status line, skipping the write when
// nothing changed since the last draw.
func (v *viewer) draw() error {
	fingerprint := v.buf.Fingerprint()
	status := v.status()
	if fingerprint == v.drawn.fingerprint && v.top == v.drawn.top && status == v.drawn.status {
		return nil
	}

	if v.clear {
		if _, err := io.WriteString(v.out, "\x1b[H\x1b[2J"); err != nil {
			return err
		}
	}
	if err := v.buf.Render(v.out, v.width, v.top, v.rows); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(v.out, "%s\n: ", status); err != nil {
		return err
	}

	v.drawn.fingerprint = fingerprint
	v.drawn.top = v.top
	v.drawn.status = status
	return nil
}

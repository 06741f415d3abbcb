package trace

import (
	"io"
	"os"
	"sync"
)

// StreamTracer writes each event to w as soon as it is emitted.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	count  int
	closed bool
}

// NewStreamTracer returns a tracer writing to w.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	t := &StreamTracer{w: w, level: level, format: format}
	if format == FormatChrome {
		_, _ = io.WriteString(w, "[\n")
	}
	return t
}

// Emit writes ev. Write errors are dropped so tracing never fails a run.
func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	ev.Seq = NextSeq()
	if t.format == FormatChrome && t.count > 0 {
		_, _ = io.WriteString(t.w, ",\n")
	}
	_, _ = t.w.Write(FormatEvent(ev, t.format))
	t.count++
}

// Flush flushes w if it supports it.
func (t *StreamTracer) Flush() error {
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close terminates the Chrome array, flushes and closes w if it is a Closer.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.format == FormatChrome {
		_, _ = io.WriteString(t.w, "\n]\n")
	}
	t.mu.Unlock()

	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.w.(io.Closer); ok && !isStdStream(t.w) {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }

func isStdStream(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (f == os.Stdout || f == os.Stderr)
}

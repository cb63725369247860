// Package ingest feeds terminal output into the activity pipeline: it
// assembles complete lines from an arbitrary byte stream and can run the
// assistant CLI under a pseudo-terminal while mirroring its output.
package ingest

import (
	"bytes"
	"sync"
)

// DefaultMaxPartial bounds how much of an unterminated line is buffered
// before it is emitted anyway. Spinners redraw with bare CRs and would
// otherwise grow the buffer forever.
const DefaultMaxPartial = 64 * 1024

// ChunkFunc receives text made of whole lines.
type ChunkFunc func(chunk string)

// LineWriter is an io.Writer that forwards only complete lines. Each Write
// emits at most one chunk holding every line it completed; a trailing
// partial line waits for the next Write or for Flush.
//
// It is safe for concurrent use.
type LineWriter struct {
	mu         sync.Mutex
	buf        []byte
	emit       ChunkFunc
	maxPartial int
}

// NewLineWriter creates a LineWriter that passes chunks to emit.
func NewLineWriter(emit ChunkFunc) *LineWriter {
	return &LineWriter{emit: emit, maxPartial: DefaultMaxPartial}
}

// Write implements io.Writer. It never fails.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf = append(w.buf, p...)

	var chunk string
	if i := bytes.LastIndexByte(w.buf, '\n'); i >= 0 {
		chunk = string(w.buf[:i+1])
		w.buf = append(w.buf[:0], w.buf[i+1:]...)
	}
	if len(w.buf) > w.maxPartial {
		chunk += string(w.buf)
		w.buf = w.buf[:0]
	}
	w.mu.Unlock()

	if chunk != "" {
		w.emit(chunk)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	chunk := string(w.buf)
	w.buf = w.buf[:0]
	w.mu.Unlock()

	if chunk != "" {
		w.emit(chunk)
	}
}

// Close flushes the writer.
func (w *LineWriter) Close() error {
	w.Flush()
	return nil
}

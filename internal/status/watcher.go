package status

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/cclens/internal/logging"
)

// Handler receives each report parsed from the inbox.
type Handler func(Report)

// Watcher tails an inbox file and delivers reports appended after Start.
// The parent directory is watched so the file may be created, truncated,
// or replaced while the watcher runs.
type Watcher struct {
	path    string
	handler Handler
	logger  *logging.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	offset  int64
	partial []byte

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the inbox at path. A nil logger
// discards diagnostics.
func NewWatcher(path string, handler Handler, logger *logging.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("status: watcher handler is required")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("status: create watcher: %w", err)
	}
	return &Watcher{
		path:    filepath.Clean(path),
		handler: handler,
		logger:  logger.WithComponent("status"),
		watcher: fw,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start positions the watcher at the current end of the inbox and begins
// delivering new reports on a background goroutine.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("status: create directory: %w", err)
	}

	if info, err := os.Stat(w.path); err == nil {
		w.offset = info.Size()
	}

	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("status: watch %s: %w", dir, err)
	}

	go w.watchLoop()
	return nil
}

// Stop ends the watch loop and releases the underlying watcher. It is safe
// to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

// Done is closed once the watch loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				w.readNew()
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.reset()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watch error", "error", err.Error())
		}
	}
}

func (w *Watcher) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.offset = 0
	w.partial = nil
}

// readNew reads everything past the last offset and delivers complete
// lines. A trailing fragment is held until its newline arrives.
func (w *Watcher) readNew() {
	w.mu.Lock()
	lines, err := w.consume()
	w.mu.Unlock()
	if err != nil {
		w.logger.Warn("failed to read inbox", "path", w.path, "error", err.Error())
		return
	}

	for _, line := range lines {
		r, err := Parse(line)
		if err != nil {
			w.logger.Debug("dropping status message", "error", err.Error())
			continue
		}
		w.handler(r)
	}
}

// consume must be called with the lock held.
func (w *Watcher) consume() ([][]byte, error) {
	f, err := os.Open(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < w.offset {
		// Truncated in place
		w.offset = 0
		w.partial = nil
	}

	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	w.offset += int64(len(data))

	data = append(w.partial, data...)
	var lines [][]byte
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(data[:i]); len(line) > 0 {
			lines = append(lines, line)
		}
		data = data[i+1:]
	}
	w.partial = append([]byte(nil), data...)
	return lines, nil
}

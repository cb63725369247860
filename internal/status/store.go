package status

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// Store appends reports to a JSONL inbox, one JSON object per line.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store for the inbox at path. The file and its
// directory are created lazily on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the inbox file path.
func (s *Store) Path() string {
	return s.path
}

// Append validates and persists a report. A zero Timestamp is set to the
// current time. Writes are serialized and use O_APPEND.
func (s *Store) Append(r Report) error {
	r, err := r.Normalize()
	if err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("status: create directory: %w", err)
	}

	data, err := sonic.Marshal(r)
	if err != nil {
		return fmt.Errorf("status: marshal report: %w", err)
	}
	data = append(data, '\n')

	return s.atomicAppend(data)
}

// ReadAll returns every parseable report in the inbox, in file order.
// Returns nil (not error) if the file does not exist.
func (s *Store) ReadAll() ([]Report, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("status: open inbox: %w", err)
	}
	defer func() { _ = f.Close() }()

	var reports []Report
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		r, err := Parse(scanner.Bytes())
		if err != nil {
			// Skip malformed lines rather than failing entirely
			continue
		}
		reports = append(reports, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("status: scan inbox: %w", err)
	}
	return reports, nil
}

// atomicAppend appends data under a mutex. Each line is small enough that
// O_APPEND keeps concurrent writers from interleaving on POSIX systems.
func (s *Store) atomicAppend(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("status: open inbox for append: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("status: append to inbox: %w", err)
	}

	return f.Close()
}

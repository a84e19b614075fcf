package notification

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLog is the append-only signal log: one record per message, prefixed
// with an ISO-8601 timestamp and followed by a blank line.
type FileLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewFileLog creates a log writing to path. The file is opened per write so
// rotation by an external tool is safe.
func NewFileLog(path string) *FileLog {
	return &FileLog{path: path, now: time.Now}
}

// Path returns the log file path.
func (f *FileLog) Path() string { return f.path }

// Append writes "<timestamp> - <message>\n\n".
func (f *FileLog) Append(message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("signal log: mkdir: %w", err)
		}
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("signal log: open: %w", err)
	}
	defer file.Close()

	ts := f.now().Format("2006-01-02T15:04:05.000000")
	if _, err := fmt.Fprintf(file, "%s - %s\n\n", ts, message); err != nil {
		return fmt.Errorf("signal log: write: %w", err)
	}
	return nil
}

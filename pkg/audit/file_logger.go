package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileLogger writes audit events as JSON lines with size-based rotation.
type FileLogger struct {
	path        string
	file        *os.File
	encoder     *json.Encoder
	mu          sync.Mutex
	maxSize     int64
	maxBackups  int
	syncOnWrite bool
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	Path        string // Full path of the active log file
	MaxSize     int64  // Max file size in bytes before rotation (default: 100MB)
	MaxBackups  int    // Max number of rotated files to keep (default: 5)
	SyncOnWrite bool   // fsync after every event for strict durability
}

// DefaultFileLoggerConfig returns default configuration
func DefaultFileLoggerConfig() FileLoggerConfig {
	return FileLoggerConfig{
		Path:       "/var/log/hdcn/audit.log",
		MaxSize:    100 * 1024 * 1024,
		MaxBackups: 5,
	}
}

// NewFileLogger creates a new file-based audit logger
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	logger := &FileLogger{
		path:        config.Path,
		maxSize:     config.MaxSize,
		maxBackups:  config.MaxBackups,
		syncOnWrite: config.SyncOnWrite,
	}
	if logger.maxSize == 0 {
		logger.maxSize = 100 * 1024 * 1024
	}
	if logger.maxBackups == 0 {
		logger.maxBackups = 5
	}

	if err := logger.openLogFile(); err != nil {
		return nil, err
	}

	return logger, nil
}

// openLogFile opens the active log file, rotating first when it is
// already over the size limit.
func (l *FileLogger) openLogFile() error {
	if info, err := os.Stat(l.path); err == nil && info.Size() >= l.maxSize {
		if err := l.rotateFile(); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}

	l.file = file
	l.encoder = json.NewEncoder(file)

	return nil
}

// rotateFile renames the active file to a timestamped backup and prunes
// old backups beyond the retention limit.
func (l *FileLogger) rotateFile() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	timestamp := time.Now().Format("2006-01-02-15-04-05")
	if err := os.Rename(l.path, l.backupName(timestamp)); err != nil {
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	if err := l.cleanupOldFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to cleanup old audit logs: %v\n", err)
	}

	return nil
}

// backupName builds the rotated filename: audit.log -> audit-<ts>.log
func (l *FileLogger) backupName(timestamp string) string {
	ext := filepath.Ext(l.path)
	base := strings.TrimSuffix(l.path, ext)
	return fmt.Sprintf("%s-%s%s", base, timestamp, ext)
}

// cleanupOldFiles removes rotated files beyond the retention limit. The
// timestamp format sorts lexicographically, so the oldest files come
// first in the sorted glob.
func (l *FileLogger) cleanupOldFiles() error {
	files, err := filepath.Glob(l.backupName("*"))
	if err != nil {
		return err
	}

	if len(files) > l.maxBackups {
		sort.Strings(files)
		for _, file := range files[:len(files)-l.maxBackups] {
			if err := os.Remove(file); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old audit log %s: %v\n", file, err)
			}
		}
	}

	return nil
}

// Log writes an audit event to the file
func (l *FileLogger) Log(ctx context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if info, err := l.file.Stat(); err == nil && info.Size() >= l.maxSize {
			if err := l.openLogFile(); err != nil {
				return fmt.Errorf("failed to rotate log file: %w", err)
			}
		}
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	if l.syncOnWrite {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync audit log: %w", err)
		}
	}

	return nil
}

// Close closes the file logger
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}

	return nil
}

// Tail reads up to count events from the active log file, oldest first.
// count <= 0 reads everything.
func (l *FileLogger) Tail(count int) ([]*Event, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	var events []*Event
	decoder := json.NewDecoder(file)

	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode audit log entry: %w", err)
		}
		events = append(events, &event)

		if count > 0 && len(events) >= count {
			break
		}
	}

	return events, nil
}

// Package audit provides structured JSON logging of navd's resource and
// invariant error taxonomy (§7): SnapshotCorrupt, VersionMismatch,
// PoolExhausted, HeapUnderflow, and EdgeOutOfBounds. Every entry is
// append-only, newline-delimited JSON, written through a single mutex so
// concurrent query goroutines never interleave a record.
//
// Example:
//
//	config := audit.DefaultConfig()
//	config.LogPath = "/var/log/navd/audit.log"
//
//	logger, err := audit.NewLogger(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer logger.Close()
//
//	logger.Log(audit.Event{
//		Type:   audit.EventSnapshotCorrupt,
//		Reason: "section table entry out of range",
//	})
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType categorizes an audit entry (§7 error taxonomy).
type EventType string

const (
	// EventSnapshotCorrupt: a loaded snapshot failed CRC or structural
	// validation (bad magic, truncated section, out-of-range CSR row).
	EventSnapshotCorrupt EventType = "SNAPSHOT_CORRUPT"

	// EventVersionMismatch: a snapshot's format version is unsupported.
	EventVersionMismatch EventType = "VERSION_MISMATCH"

	// EventPoolExhausted: a query waited past its deadline for a free
	// search context.
	EventPoolExhausted EventType = "POOL_EXHAUSTED"

	// EventHeapUnderflow: the open-set heap was popped while empty, an
	// invariant violation in the A* loop.
	EventHeapUnderflow EventType = "HEAP_UNDERFLOW"

	// EventEdgeOutOfBounds: a decoded edge referenced a destination node
	// outside the graph's node range.
	EventEdgeOutOfBounds EventType = "EDGE_OUT_OF_BOUNDS"

	// EventAdminReload: an operator-triggered snapshot hot-swap (§4.12,
	// §6.5), recorded regardless of outcome.
	EventAdminReload EventType = "ADMIN_RELOAD"
)

// Event is one audit log entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// Resource identifies what the event concerns: a file path, a node
	// id, a pool name.
	Resource string `json:"resource,omitempty"`

	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Logger writes Events as newline-delimited JSON to an append-only file.
//
// All methods are safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	file     *os.File
	config   Config
	sequence uint64
	closed   bool

	alertCallback func(Event)
}

// Config holds audit logger configuration.
type Config struct {
	// Enabled controls whether audit logging is active; a disabled
	// Logger discards every event.
	Enabled bool

	// LogPath is the append-only log file; AUDIT_LOG_PATH (§6.4). Empty
	// means stderr.
	LogPath string

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// AlertOnEvents triggers the alert callback for these event types.
	AlertOnEvents []EventType
}

// DefaultConfig returns sensible defaults: enabled, logging to stderr,
// alerting on snapshot corruption, version mismatch, pool exhaustion and
// heap underflow.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		SyncWrites:    false,
		AlertOnEvents: []EventType{EventSnapshotCorrupt, EventVersionMismatch, EventPoolExhausted, EventHeapUnderflow},
	}
}

// NewLogger creates a logger per config. An empty LogPath logs to stderr;
// otherwise the directory is created if missing and the file opened in
// append mode. A disabled config returns a valid no-op Logger.
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{config: config}, nil
	}
	if config.LogPath == "" {
		return &Logger{writer: os.Stderr, config: config}, nil
	}

	dir := filepath.Dir(config.LogPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("audit: creating log directory: %w", err)
	}
	file, err := os.OpenFile(config.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("audit: opening log file: %w", err)
	}
	return &Logger{writer: file, file: file, config: config}, nil
}

// NewLoggerWithWriter creates a logger over an arbitrary writer, for tests.
func NewLoggerWithWriter(writer io.Writer, config Config) *Logger {
	return &Logger{writer: writer, config: config}
}

// SetAlertCallback installs a callback invoked synchronously from Log for
// any event whose Type appears in config.AlertOnEvents.
func (l *Logger) SetAlertCallback(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.alertCallback = fn
}

// Log records event, stamping Timestamp and ID if unset.
func (l *Logger) Log(event Event) error {
	if !l.config.Enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("audit: logger is closed")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		l.sequence++
		event.ID = fmt.Sprintf("audit-%d-%d", event.Timestamp.UnixNano(), l.sequence)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshaling event: %w", err)
	}
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: writing event: %w", err)
	}
	if l.config.SyncWrites && l.file != nil {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("audit: syncing log: %w", err)
		}
	}

	if l.alertCallback != nil {
		for _, t := range l.config.AlertOnEvents {
			if event.Type == t {
				l.alertCallback(event)
				break
			}
		}
	}
	return nil
}

// LogError is a convenience wrapper for the common case: a failed
// resource operation with a reason string.
func (l *Logger) LogError(t EventType, resource string, reason string) error {
	return l.Log(Event{Type: t, Resource: resource, Success: false, Reason: reason})
}

// LogSuccess records a successful event against a resource, e.g. a
// completed admin reload.
func (l *Logger) LogSuccess(t EventType, resource string, metadata map[string]string) error {
	return l.Log(Event{Type: t, Resource: resource, Success: true, Metadata: metadata})
}

// Close flushes and closes the underlying file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

package sfapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/sfapi/internal/constants"
)

// AuditLogEntry describes one completed or failed call against an org.
type AuditLogEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	OrgAlias  string        `json:"org_alias"`
	Operation string        `json:"operation"`
	Outcome   string        `json:"outcome"`
	Duration  time.Duration `json:"-"`
}

// MarshalJSON renders the duration in milliseconds for log consumers.
func (e AuditLogEntry) MarshalJSON() ([]byte, error) {
	type alias AuditLogEntry

	data, err := json.Marshal(struct {
		alias

		DurationMS float64 `json:"duration_ms"`
	}{
		alias:      alias(e),
		DurationMS: float64(e.Duration) / float64(time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	return data, nil
}

// AuditRecorder receives audit entries. Record must never block the caller
// and must never fail the call that produced the entry.
type AuditRecorder interface {
	Record(entry AuditLogEntry)
}

// AuditSinkType represents the type of audit sink backend.
type AuditSinkType string

const (
	// AuditSinkLogger writes entries through the configured Logger.
	AuditSinkLogger AuditSinkType = "logger"

	// AuditSinkFile appends entries as JSON lines to a file.
	AuditSinkFile AuditSinkType = "file"

	// AuditSinkNATS publishes entries to a NATS subject.
	AuditSinkNATS AuditSinkType = "nats"

	// AuditSinkNone discards entries.
	AuditSinkNone AuditSinkType = "none"
)

// Static errors for err113 compliance.
var (
	ErrFileAuditPathRequired = errors.New("file audit sink requires a path")
	ErrNATSAuditURLRequired  = errors.New("NATS audit sink requires a server URL")
	ErrUnsupportedAuditSink  = errors.New("unsupported audit sink type")
)

// AuditConfig configures an audit sink backend.
type AuditConfig struct {
	// Type is the sink backend type.
	Type AuditSinkType

	// File configures the JSONL file sink.
	File *FileAuditConfig

	// NATS configures the NATS publish sink.
	NATS *NATSAuditConfig

	// Logger receives entries for the logger sink; also used to report
	// sink write failures.
	Logger Logger
}

// FileAuditConfig configures the JSONL file sink.
type FileAuditConfig struct {
	// Path is the audit log file; created if absent, appended otherwise.
	Path string
}

// NATSAuditConfig configures the NATS publish sink.
type NATSAuditConfig struct {
	// URL is the NATS server URL, e.g. nats://localhost:4222.
	URL string
	// Subject is the publish subject; the org alias is appended as a
	// token. Defaults to "sfapi.audit".
	Subject string
	// CredsFile is an optional NATS credentials file.
	CredsFile string
}

// NewAuditRecorderFromConfig creates an audit sink from configuration.
func NewAuditRecorderFromConfig(config *AuditConfig) (AuditRecorder, error) {
	if config == nil {
		return NewNoOpAuditRecorder(), nil
	}

	switch config.Type {
	case AuditSinkLogger:
		return NewLoggerAuditRecorder(config.Logger), nil

	case AuditSinkFile:
		if config.File == nil || config.File.Path == "" {
			return nil, ErrFileAuditPathRequired
		}

		return NewFileAuditRecorder(config.File.Path, config.Logger)

	case AuditSinkNATS:
		if config.NATS == nil || config.NATS.URL == "" {
			return nil, ErrNATSAuditURLRequired
		}

		return NewNATSAuditRecorder(config.NATS, config.Logger)

	case AuditSinkNone:
		return NewNoOpAuditRecorder(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAuditSink, config.Type)
	}
}

// NoOpAuditRecorder discards all entries.
type NoOpAuditRecorder struct{}

// NewNoOpAuditRecorder creates a recorder that discards entries.
func NewNoOpAuditRecorder() *NoOpAuditRecorder {
	return &NoOpAuditRecorder{}
}

// Record does nothing.
func (r *NoOpAuditRecorder) Record(entry AuditLogEntry) {}

// LoggerAuditRecorder writes entries through a Logger at Info level.
type LoggerAuditRecorder struct {
	logger Logger
}

// NewLoggerAuditRecorder creates a logger-backed recorder. A nil logger
// yields a recorder that discards entries.
func NewLoggerAuditRecorder(logger Logger) *LoggerAuditRecorder {
	return &LoggerAuditRecorder{logger: logger}
}

// Record logs the entry.
func (r *LoggerAuditRecorder) Record(entry AuditLogEntry) {
	if r.logger == nil {
		return
	}

	r.logger.Info("api call", map[string]interface{}{
		"org":         entry.OrgAlias,
		"operation":   entry.Operation,
		"outcome":     entry.Outcome,
		"duration_ms": float64(entry.Duration) / float64(time.Millisecond),
	})
}

// FileAuditRecorder appends entries as JSON lines. Writes happen on a
// dedicated goroutine behind a bounded buffer; entries beyond the buffer
// are dropped so callers are never blocked on disk.
type FileAuditRecorder struct {
	file    *os.File
	logger  Logger
	entries chan AuditLogEntry
	done    chan struct{}
	once    sync.Once
}

// NewFileAuditRecorder opens (or creates) the audit file and starts the
// writer goroutine.
func NewFileAuditRecorder(path string, logger Logger) (*FileAuditRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, constants.ConfigDirPerm); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.ConfigFilePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	recorder := &FileAuditRecorder{
		file:    file,
		logger:  logger,
		entries: make(chan AuditLogEntry, constants.AuditBufferSize),
		done:    make(chan struct{}),
	}

	go recorder.writeLoop()

	return recorder, nil
}

// Record enqueues the entry, dropping it when the buffer is full.
func (r *FileAuditRecorder) Record(entry AuditLogEntry) {
	select {
	case r.entries <- entry:
	default:
		if r.logger != nil {
			r.logger.Warn("audit buffer full, entry dropped", map[string]interface{}{
				"operation": entry.Operation,
				"org":       entry.OrgAlias,
			})
		}
	}
}

func (r *FileAuditRecorder) writeLoop() {
	defer close(r.done)

	for entry := range r.entries {
		line, err := json.Marshal(entry)
		if err != nil {
			continue
		}

		line = append(line, '\n')

		_, err = r.file.Write(line)
		if err != nil && r.logger != nil {
			r.logger.Error("audit write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

// Close drains pending entries and closes the file.
func (r *FileAuditRecorder) Close() error {
	r.once.Do(func() {
		close(r.entries)
	})

	<-r.done

	err := r.file.Close()
	if err != nil {
		return fmt.Errorf("failed to close audit log file: %w", err)
	}

	return nil
}

// NATSAuditRecorder publishes entries to a NATS subject, one token per org
// alias (e.g. "sfapi.audit.production").
type NATSAuditRecorder struct {
	conn    *nats.Conn
	subject string
	logger  Logger
}

// NewNATSAuditRecorder connects to NATS and returns a publishing recorder.
func NewNATSAuditRecorder(config *NATSAuditConfig, logger Logger) (*NATSAuditRecorder, error) {
	opts := []nats.Option{
		nats.Name("sfapi-audit"),
		nats.MaxReconnects(-1),
	}

	if config.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(config.CredsFile))
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	subject := config.Subject
	if subject == "" {
		subject = "sfapi.audit"
	}

	return &NATSAuditRecorder{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Record publishes the entry. Publish buffers locally and never waits for
// the server, so a slow broker cannot stall API calls.
func (r *NATSAuditRecorder) Record(entry AuditLogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	subject := r.subject
	if entry.OrgAlias != "" {
		subject = subject + "." + entry.OrgAlias
	}

	err = r.conn.Publish(subject, data)
	if err != nil && r.logger != nil {
		r.logger.Warn("audit publish failed", map[string]interface{}{
			"subject": subject,
			"error":   err.Error(),
		})
	}
}

// Close drains the connection.
func (r *NATSAuditRecorder) Close() error {
	err := r.conn.Drain()
	if err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}

	return nil
}

// MultiAuditRecorder fans entries out to several recorders.
type MultiAuditRecorder struct {
	recorders []AuditRecorder
}

// NewMultiAuditRecorder creates a fan-out recorder.
func NewMultiAuditRecorder(recorders ...AuditRecorder) *MultiAuditRecorder {
	return &MultiAuditRecorder{recorders: recorders}
}

// Record forwards the entry to every recorder.
func (r *MultiAuditRecorder) Record(entry AuditLogEntry) {
	for _, recorder := range r.recorders {
		recorder.Record(entry)
	}
}

// Close closes every recorder that supports closing.
func (r *MultiAuditRecorder) Close() error {
	var lastErr error

	for _, recorder := range r.recorders {
		if closer, ok := recorder.(interface{ Close() error }); ok {
			err := closer.Close()
			if err != nil {
				lastErr = err
			}
		}
	}

	return lastErr
}

package sfapi

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
)

// NoOpLogger discards all log output. It matches the behavior clients fall
// back to when Config.Logger is nil.
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards everything.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (*NoOpLogger) Debug(msg string, fields map[string]interface{}) {}
func (*NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (*NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (*NoOpLogger) Error(msg string, fields map[string]interface{}) {}

// StdLogger adapts the standard library logger to the Logger interface.
// Fields are rendered as sorted key=value pairs after the message.
type StdLogger struct {
	logger *log.Logger
}

// NewStdLogger creates a standard-library-backed logger. A nil logger
// defaults to stderr.
func NewStdLogger(logger *log.Logger) *StdLogger {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	return &StdLogger{logger: logger}
}

// Debug implements Logger.
func (l *StdLogger) Debug(msg string, fields map[string]interface{}) {
	l.print("DEBUG", msg, fields)
}

// Info implements Logger.
func (l *StdLogger) Info(msg string, fields map[string]interface{}) {
	l.print("INFO", msg, fields)
}

// Warn implements Logger.
func (l *StdLogger) Warn(msg string, fields map[string]interface{}) {
	l.print("WARN", msg, fields)
}

// Error implements Logger.
func (l *StdLogger) Error(msg string, fields map[string]interface{}) {
	l.print("ERROR", msg, fields)
}

func (l *StdLogger) print(level, msg string, fields map[string]interface{}) {
	var builder strings.Builder

	builder.WriteString(level)
	builder.WriteString(" ")
	builder.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(&builder, " %s=%v", key, fields[key])
	}

	l.logger.Print(builder.String())
}

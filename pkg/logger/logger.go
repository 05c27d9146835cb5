// Package logger provides the logging interface shared by all crankd
// components. Implementations log to the console or discard output; the
// daemon, the executor core and the CLI all speak through it so tests can
// substitute a recording logger.
package logger

import (
	"fmt"
	"log"
	"os"
)

// Logger is the printf-style logging contract used across crankd.
type Logger interface {
	// Info logs routine progress (e.g. "round 12843 submitted 3 txs").
	Info(format string, args ...interface{})

	// Warning logs recoverable trouble (e.g. "pool fetch failed, skipping round").
	Warning(format string, args ...interface{})

	// Error logs failures that need operator attention.
	Error(format string, args ...interface{})

	// Close releases any resources held by the logger. Safe to call more
	// than once; loggers without resources return nil.
	Close() error
}

// StandardLogger writes through a stdlib *log.Logger.
type StandardLogger struct {
	logger *log.Logger
}

// NewStandardLogger wraps an existing *log.Logger.
func NewStandardLogger(l *log.Logger) *StandardLogger {
	return &StandardLogger{logger: l}
}

// Default returns a StandardLogger writing to stderr with the crankd prefix.
func Default() *StandardLogger {
	return NewStandardLogger(log.New(os.Stderr, "crankd: ", log.LstdFlags|log.Lmsgprefix))
}

func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.logger.Printf("[INFO] "+format, args...)
}

func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.logger.Printf("[WARNING] "+format, args...)
}

func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.logger.Printf("[ERROR] "+format, args...)
}

// Close is a no-op for StandardLogger.
func (s *StandardLogger) Close() error {
	return nil
}

// NopLogger discards everything. Used by tests and by library consumers
// that pass no logger.
type NopLogger struct{}

func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Info(format string, args ...interface{})    {}
func (n *NopLogger) Warning(format string, args ...interface{}) {}
func (n *NopLogger) Error(format string, args ...interface{})   {}

func (n *NopLogger) Close() error {
	return nil
}

var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
)

// MockLogger records every call for test assertions.
type MockLogger struct {
	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
	CloseCalled  bool
}

func NewMockLogger() *MockLogger {
	return &MockLogger{
		InfoCalls:    make([]string, 0),
		WarningCalls: make([]string, 0),
		ErrorCalls:   make([]string, 0),
	}
}

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.InfoCalls = append(m.InfoCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.WarningCalls = append(m.WarningCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.ErrorCalls = append(m.ErrorCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Close() error {
	m.CloseCalled = true
	return nil
}

var _ Logger = (*MockLogger)(nil)

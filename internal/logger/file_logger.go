package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger is a file logger for risk manager activity. One logger per
// portfolio/session.
type Logger struct {
	portfolio string
	logFile   *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logDir    string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARN"
	LogLevelError    LogLevel = "ERROR"
	LogLevelDecision LogLevel = "DECISION"
	LogLevelHalt     LogLevel = "HALT"
)

// NewLogger creates a new file logger for the given portfolio name.
func NewLogger(portfolio string) (*Logger, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("risk_%s_%s.log", portfolio, timestamp)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		portfolio: portfolio,
		logFile:   file,
		logger:    log.New(file, "", 0),
		logDir:    logDir,
	}

	l.writeSessionHeader()

	return l, nil
}

// NewDiscardLogger returns a logger that writes nowhere. Used in tests and
// when file logging is disabled.
func NewDiscardLogger() *Logger {
	return &Logger{
		portfolio: "discard",
		logger:    log.New(io.Discard, "", 0),
	}
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
🛡️  RISK GATE SESSION STARTED
================================================================================
Portfolio: %s
Started: %s
================================================================================
`, l.portfolio, time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Println(fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// LogDecision logs a validation outcome for the audit trail.
func (l *Logger) LogDecision(symbol, side string, accepted bool, reason string, requested, adjusted float64) {
	verdict := "REJECTED"
	if accepted {
		verdict = "ACCEPTED"
	}
	l.Log(LogLevelDecision, "%s %s %s qty=%.8f adjusted=%.8f reason=%s",
		verdict, side, symbol, requested, adjusted, reason)
}

// LogStateTransition logs a circuit-breaker state change.
func (l *Logger) LogStateTransition(from, to, reason string) {
	l.Log(LogLevelHalt, "state %s -> %s: %s", from, to, reason)
}

// LogDegraded logs a degraded-mode fallback after a provider failure.
func (l *Logger) LogDegraded(provider, symbol string, err error) {
	l.Warning("degraded mode: %s lookup for %s failed, using configured default: %v", provider, symbol, err)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		footer := fmt.Sprintf(`
================================================================================
🛑 RISK GATE SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, timestamp)
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}

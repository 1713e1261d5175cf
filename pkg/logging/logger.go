package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger provides leveled logging for harness components.
// By default logs are written to a run-specific file in ~/.harness/logs/
//
// Loggers derived with With share the parent's output, level and
// recent-entry buffer, and tag every entry with their fields.
type Logger struct {
	runID     string
	component string
	fields    []Field
	logPath   string

	out *output
}

// Field is a key/value tag attached to every entry of a logger.
type Field struct {
	Key   string
	Value string
}

func (f Field) String() string {
	return f.Key + "=" + f.Value
}

// output is shared by a logger and everything derived from it.
type output struct {
	mu        sync.Mutex
	file      *os.File
	logger    *log.Logger
	level     Level
	recent    *ring
	closeOnce sync.Once
}

var (
	// Global run ID for the current execution
	runID     string
	runIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir string
	dirMu  sync.Mutex
)

// getRunID returns or creates the run ID for this execution
func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// logDirectory returns the log directory, creating the default one on first use.
func logDirectory() (string, error) {
	dirMu.Lock()
	defer dirMu.Unlock()

	if logDir != "" {
		return logDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".harness", "logs")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	logDir = dir
	return logDir, nil
}

// SetLogDirectory redirects subsequently created file loggers to dir.
func SetLogDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	dirMu.Lock()
	defer dirMu.Unlock()
	logDir = dir
	return nil
}

// NewLogger creates a new logger for a specific component.
// The logger writes to <log-dir>/<run-id>-harness.log
//
// If the log directory cannot be created or the log file cannot be opened,
// it returns a fallback logger that writes to stderr along with the error.
// Callers can check the error to detect fallback mode and log warnings.
func NewLogger(component string) (*Logger, error) {
	dir, err := logDirectory()
	if err != nil {
		return newFallbackLogger(component, err), err
	}

	id := getRunID()
	logPath := filepath.Join(dir, fmt.Sprintf("%s-harness.log", id))

	// Open log file in append mode (multiple components may write to same file)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallbackLogger(component, fmt.Errorf("failed to open log file: %w", err)), err
	}

	return &Logger{
		runID:     id,
		component: component,
		logPath:   logPath,
		out: &output{
			file:   file,
			logger: log.New(file, "", 0), // We'll format timestamps ourselves
			level:  LevelDebug,
			recent: newRing(DefaultRecentEntries),
		},
	}, nil
}

// NewWriterLogger creates a logger that writes to w instead of a file.
func NewWriterLogger(component string, w io.Writer) *Logger {
	return &Logger{
		runID:     getRunID(),
		component: component,
		out: &output{
			logger: log.New(w, "", 0),
			level:  LevelDebug,
			recent: newRing(DefaultRecentEntries),
		},
	}
}

// Discard returns a logger that only keeps entries in memory.
func Discard(component string) *Logger {
	return NewWriterLogger(component, io.Discard)
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags|log.Lshortfile)
	logger.Printf("WARNING: Failed to initialize file logging: %v", err)
	logger.Printf("Falling back to stderr logging")

	return &Logger{
		runID:     getRunID(),
		component: component,
		out: &output{
			logger: logger,
			level:  LevelDebug,
			recent: newRing(DefaultRecentEntries),
		},
	}
}

// With returns a logger that tags every entry with key=value.
func (l *Logger) With(key string, value interface{}) *Logger {
	fields := make([]Field, len(l.fields), len(l.fields)+1)
	copy(fields, l.fields)
	fields = append(fields, Field{Key: key, Value: fmt.Sprint(value)})

	return &Logger{
		runID:     l.runID,
		component: l.component,
		fields:    fields,
		logPath:   l.logPath,
		out:       l.out,
	}
}

// Named returns a logger for another component sharing this logger's output.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		runID:     l.runID,
		component: component,
		fields:    l.fields,
		logPath:   l.logPath,
		out:       l.out,
	}
}

// SetLevel drops entries below level for this logger and every logger sharing its output.
func (l *Logger) SetLevel(level Level) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.level = level
}

// formatLogEntry creates a structured log entry with timestamp, component, level and fields
func (l *Logger) formatLogEntry(ts time.Time, level Level, message string) string {
	timestamp := ts.Format("2006-01-02 15:04:05.000")
	if len(l.fields) == 0 {
		return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
	}

	tags := make([]string, len(l.fields))
	for i, f := range l.fields {
		tags[i] = f.String()
	}
	return fmt.Sprintf("[%s] [%s] [%s] [%s] %s", timestamp, l.component, level, strings.Join(tags, " "), message)
}

func (l *Logger) write(level Level, format string, v ...interface{}) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if level < l.out.level {
		return
	}

	now := time.Now()
	entry := l.formatLogEntry(now, level, fmt.Sprintf(format, v...))
	l.out.logger.Println(entry)
	l.out.recent.add(Entry{Time: now, Level: level, Fields: l.fields, Line: entry})
}

// Printf logs a formatted message
func (l *Logger) Printf(format string, v ...interface{}) {
	l.write(LevelInfo, format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write(LevelDebug, format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write(LevelInfo, format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write(LevelWarn, format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write(LevelError, format, v...)
}

// Excerpt returns up to max of the most recent entries carrying all of
// this logger's fields, oldest first, one per line.
func (l *Logger) Excerpt(max int) string {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	entries := l.out.recent.matching(l.fields, max)
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Line
	}
	return strings.Join(lines, "\n")
}

// Writer returns an io.Writer that writes to this logger's destination
func (l *Logger) Writer() io.Writer {
	if l.out.file != nil {
		return l.out.file
	}
	return l.out.logger.Writer()
}

// RunID returns the current run ID
func (l *Logger) RunID() string {
	return l.runID
}

// Component returns the component name
func (l *Logger) Component() string {
	return l.component
}

// LogPath returns the path to the log file, empty for writer loggers
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call multiple times and from derived loggers.
func (l *Logger) Close() error {
	var err error
	l.out.closeOnce.Do(func() {
		if l.out.file != nil {
			err = l.out.file.Close()
		}
	})
	return err
}

// GetRunID returns the current global run ID
func GetRunID() string {
	return getRunID()
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	return logDirectory()
}

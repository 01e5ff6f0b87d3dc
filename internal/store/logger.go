package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "INFO"
	}
	return levelNames[l]
}

// ParseLevel maps DEBUG, INFO, WARN or ERROR (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is a structured logger that writes to both stdout and the store.
// A nil store logs to stdout only.
type Logger struct {
	store     *Store
	component string
	minLevel  Level
	stdout    io.Writer
	mu        *sync.Mutex
	fields    map[string]interface{}
}

// NewLogger creates a new logger for a component.
func NewLogger(store *Store, component string) *Logger {
	return &Logger{
		store:     store,
		component: component,
		minLevel:  LevelInfo,
		stdout:    os.Stdout,
		mu:        &sync.Mutex{},
		fields:    make(map[string]interface{}),
	}
}

// SetLevel drops messages below min.
func (l *Logger) SetLevel(min Level) {
	l.minLevel = min
}

// SetOutput redirects the stdout copy of each line.
func (l *Logger) SetOutput(w io.Writer) {
	l.stdout = w
}

// Component returns a logger for another component sharing the store,
// level and output.
func (l *Logger) Component(name string) *Logger {
	child := l.clone()
	child.component = name
	return child
}

func (l *Logger) clone() *Logger {
	c := &Logger{
		store:     l.store,
		component: l.component,
		minLevel:  l.minLevel,
		stdout:    l.stdout,
		mu:        l.mu,
		fields:    make(map[string]interface{}, len(l.fields)),
	}
	for k, v := range l.fields {
		c.fields[k] = v
	}
	return c
}

// WithField returns a new logger with an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	c := l.clone()
	c.fields[key] = value
	return c
}

// WithFields returns a new logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	c := l.clone()
	for k, v := range fields {
		c.fields[k] = v
	}
	return c
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if level < l.minLevel {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	var fieldsJSON string
	if len(l.fields) > 0 {
		if data, err := json.Marshal(l.fields); err == nil {
			fieldsJSON = string(data)
		}
	}

	timestamp := time.Now().Format("2006/01/02 15:04:05")
	l.mu.Lock()
	fmt.Fprintf(l.stdout, "%s [%s] [%s] %s", timestamp, l.component, level, msg)
	if fieldsJSON != "" {
		fmt.Fprintf(l.stdout, " %s", fieldsJSON)
	}
	fmt.Fprintln(l.stdout)
	l.mu.Unlock()

	if l.store != nil {
		l.store.WriteLog(level.String(), l.component, msg, fieldsJSON)
	}
}

// LogWriter wraps Store to provide an io.Writer interface for existing log.* calls.
// This intercepts standard log output and stores it.
type LogWriter struct {
	store     *Store
	component string
	level     string
	out       io.Writer
}

// NewLogWriter creates a writer that captures log output.
func NewLogWriter(store *Store, component, level string) *LogWriter {
	return &LogWriter{
		store:     store,
		component: component,
		level:     level,
		out:       os.Stdout,
	}
}

func (w *LogWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	component, msg := splitComponent(msg, w.component)
	level := detectLevel(msg, w.level)

	if w.store != nil {
		w.store.WriteLog(level, component, msg, "")
	}

	w.out.Write(p)
	return len(p), nil
}

// splitComponent extracts the "[component]" tag of a log line.
// Format: "2024/01/15 14:30:00 [component] message"
func splitComponent(msg, fallback string) (string, string) {
	idx := strings.Index(msg, "[")
	if idx < 0 {
		return fallback, msg
	}
	end := strings.Index(msg[idx:], "]")
	if end <= 1 {
		return fallback, msg
	}
	return msg[idx+1 : idx+end], strings.TrimSpace(msg[idx+end+1:])
}

func detectLevel(msg, fallback string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "failed"):
		return "ERROR"
	case strings.Contains(lower, "warn"):
		return "WARN"
	case strings.Contains(lower, "debug"):
		return "DEBUG"
	}
	return fallback
}

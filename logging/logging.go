// Package logging provides leveled, key=value console logging for heartbeatkit.
// Heartbeat logging is best-effort and must stay quiet inside a host
// application, so the default level is WARN.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelOff   Level = "OFF"
)

// Logger writes one line per entry to its output.
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	traceID   string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
	LevelOff:   4,
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// New creates a new Logger writing to stderr at WARN.
func New() *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		output:   os.Stderr,
		minLevel: LevelWarn,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := New()
	l.output = io.Discard
	l.minLevel = LevelOff
	return l
}

// WithComponent returns a new logger with the given component name.
// The derived logger shares the parent's output lock.
func (l *Logger) WithComponent(component string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		traceID:   l.traceID,
	}
}

// WithTraceID returns a new logger with the given trace ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		traceID:   traceID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// SetOutput sets the output writer (default: stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.output = w
	l.mu.Unlock()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs in key order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

// log writes: LEVEL TIMESTAMP [component] message key=value ... trace=<id>
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.traceID != "" {
		fieldStr += " trace=" + l.traceID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.output.Write([]byte(line))
}

// --- Heartbeat event helpers ---

// HeartbeatLogged records that a heartbeat was appended for agent.
func (l *Logger) HeartbeatLogged(agent string, date time.Time, periods []string) {
	l.Debug("heartbeat_logged", map[string]interface{}{
		"agent":   agent,
		"date":    date.Format(time.DateOnly),
		"periods": strings.Join(periods, ","),
	})
}

// HeartbeatSkipped records that every tracked period was already satisfied.
func (l *Logger) HeartbeatSkipped(agent string, date time.Time) {
	l.Debug("heartbeat_skipped", map[string]interface{}{
		"agent": agent,
		"date":  date.Format(time.DateOnly),
	})
}

// Flushed records a flush and how many agents it carried.
func (l *Logger) Flushed(kind string, agents int) {
	l.Debug("heartbeats_flushed", map[string]interface{}{
		"kind":   kind,
		"agents": agents,
	})
}

// LoadFailed records bytes that could not be read or decoded. The store
// is then treated as empty.
func (l *Logger) LoadFailed(id string, err error) {
	l.Debug("heartbeat_load_failed", map[string]interface{}{
		"id":    id,
		"error": err.Error(),
	})
}

// PersistFailed records a write that was dropped.
func (l *Logger) PersistFailed(id string, err error) {
	l.Warn("heartbeat_persist_failed", map[string]interface{}{
		"id":    id,
		"error": err.Error(),
	})
}

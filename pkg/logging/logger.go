// Package logging writes structured JSONL events for the focus engine and
// the tooling around it.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel converts a config string into a Level.
func ParseLevel(s string) (Level, error) {
	level := Level(s)
	if _, ok := levelRank[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Category represents the subsystem generating the log
type Category string

const (
	CategoryRegion    Category = "region"
	CategoryReconcile Category = "reconcile"
	CategoryBorrow    Category = "borrow"
	CategoryScenario  Category = "scenario"
	CategoryConfig    Category = "config"
	CategoryBus       Category = "bus"
	CategoryWatch     Category = "watch"
)

// Event represents a structured log event
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Category  Category       `json:"category"`
	EventType string         `json:"type"`
	ManagerID string         `json:"manager_id,omitempty"`
	RegionID  string         `json:"region_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// sink is the destination shared by a logger and the loggers derived from it.
type sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// Logger writes structured events as JSON lines.
// A nil *Logger is valid and discards everything.
type Logger struct {
	sink      *sink
	mu        sync.Mutex
	managerID string
	minLevel  Level
	now       func() time.Time
}

// New creates a logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{
		sink:     &sink{w: w},
		minLevel: LevelInfo,
		now:      time.Now,
	}
}

// Open creates a logger appending to the file at path.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	l := New(file)
	l.sink.closer = file
	return l, nil
}

// Nop returns a logger that discards all events.
func Nop() *Logger {
	return New(io.Discard)
}

// SetMinLevel sets the minimum log level
func (l *Logger) SetMinLevel(level Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// WithManager returns a logger that stamps events with a manager id.
// The returned logger shares the destination and level of l at call time.
func (l *Logger) WithManager(id string) *Logger {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		sink:      l.sink,
		managerID: id,
		minLevel:  l.minLevel,
		now:       l.now,
	}
}

// Log writes an event
func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	if levelRank[event.Level] < levelRank[l.minLevel] {
		l.mu.Unlock()
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	if event.ManagerID == "" {
		event.ManagerID = l.managerID
	}
	l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if _, err := l.sink.w.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Helper methods for common log patterns

// Debug logs a debug event
func (l *Logger) Debug(category Category, eventType, regionID, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelDebug,
		Category:  category,
		EventType: eventType,
		RegionID:  regionID,
		Message:   message,
		Details:   details,
	})
}

// Info logs an info event
func (l *Logger) Info(category Category, eventType, regionID, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelInfo,
		Category:  category,
		EventType: eventType,
		RegionID:  regionID,
		Message:   message,
		Details:   details,
	})
}

// Warn logs a warning event
func (l *Logger) Warn(category Category, eventType, regionID, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelWarn,
		Category:  category,
		EventType: eventType,
		RegionID:  regionID,
		Message:   message,
		Details:   details,
	})
}

// Error logs an error event
func (l *Logger) Error(category Category, eventType, regionID, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelError,
		Category:  category,
		EventType: eventType,
		RegionID:  regionID,
		Message:   message,
		Details:   details,
	})
}

// Close closes the underlying file, if the logger owns one.
func (l *Logger) Close() error {
	if l == nil || l.sink.closer == nil {
		return nil
	}
	return l.sink.closer.Close()
}

// ReadEvents decodes every JSONL event from r.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			return events, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

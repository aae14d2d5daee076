// Package audit records security events of a NornicRDF store as an
// append-only JSON Lines trail.
//
// Events cover authentication (successful and failed logins) and denied
// permission checks on named graphs. Each event is one JSON object per line,
// so the trail can be tailed, grepped or shipped to a log pipeline as is.
//
// Example Usage:
//
//	logger, err := audit.NewLogger(audit.Config{
//		Enabled: true,
//		LogPath: "/var/log/nornicrdf/audit.log",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer logger.Close()
//
//	logger.LogAuth("alice", true, "")
//	logger.LogAccessDenied("bob", "urn:graph:main", "write", "viewer role")
//
//	// Later, for review:
//	failed := false
//	result, _ := audit.NewReader("/var/log/nornicrdf/audit.log").Query(audit.Query{
//		Success: &failed,
//	})
//
// Thread Safety:
//
//	Logger methods are safe for concurrent use.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrClosed is returned by Log after Close.
var ErrClosed = errors.New("audit logger is closed")

// EventType classifies an event.
type EventType string

const (
	EventLogin        EventType = "LOGIN"
	EventLoginFailed  EventType = "LOGIN_FAILED"
	EventAccessDenied EventType = "ACCESS_DENIED"
)

// Event is one audit record.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	Principal  string `json:"principal,omitempty"`
	Graph      string `json:"graph,omitempty"`
	Permission string `json:"permission,omitempty"`

	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Config holds audit logger configuration.
type Config struct {
	// Enabled controls whether events are written at all.
	Enabled bool
	// LogPath is the audit file, opened in append mode.
	LogPath string
	// SyncWrites fsyncs after every event.
	SyncWrites bool
}

// Logger appends events to a writer.
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	file     *os.File
	config   Config
	sequence uint64
	closed   bool
}

// NewLogger opens config.LogPath for appending, creating its directory. A
// disabled config yields a Logger that drops everything.
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{config: config}, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.LogPath), 0750); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	file, err := os.OpenFile(config.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("opening audit log file: %w", err)
	}
	return &Logger{writer: file, file: file, config: config}, nil
}

// NewLoggerWithWriter creates an enabled logger on w (for testing).
func NewLoggerWithWriter(w io.Writer) *Logger {
	return &Logger{writer: w, config: Config{Enabled: true}}
}

// Log writes event, filling in Timestamp and ID when unset.
func (l *Logger) Log(event Event) error {
	if l == nil || !l.config.Enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
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
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	if l.config.SyncWrites && l.file != nil {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("syncing audit log: %w", err)
		}
	}
	return nil
}

// LogAuth records a login attempt.
func (l *Logger) LogAuth(principal string, success bool, reason string) error {
	t := EventLogin
	if !success {
		t = EventLoginFailed
	}
	return l.Log(Event{Type: t, Principal: principal, Success: success, Reason: reason})
}

// LogAccessDenied records a failed permission check.
func (l *Logger) LogAccessDenied(principal, graph, permission, reason string) error {
	return l.Log(Event{
		Type:       EventAccessDenied,
		Principal:  principal,
		Graph:      graph,
		Permission: permission,
		Reason:     reason,
	})
}

// Close closes the audit file. Further Log calls fail with ErrClosed.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Query selects events from a trail. Zero fields match everything.
type Query struct {
	StartTime  time.Time
	EndTime    time.Time
	EventTypes []EventType
	Principal  string
	Success    *bool
	Limit      int
}

// QueryResult holds matching events in file order.
type QueryResult struct {
	Events     []Event
	TotalCount int
	HasMore    bool
}

// Reader reads an audit trail written by Logger.
type Reader struct {
	path string
}

// NewReader creates a reader for path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Query scans the whole file. A missing file yields no events. Malformed
// lines are skipped.
func (r *Reader) Query(q Query) (*QueryResult, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &QueryResult{Events: []Event{}}, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer file.Close()

	events := []Event{}
	decoder := json.NewDecoder(file)
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				// the decoder cannot resynchronize after a syntax error
				break
			}
			continue
		}
		if q.matches(event) {
			events = append(events, event)
		}
	}

	total := len(events)
	if q.Limit > 0 && len(events) > q.Limit {
		events = events[:q.Limit]
	}
	return &QueryResult{
		Events:     events,
		TotalCount: total,
		HasMore:    len(events) < total,
	}, nil
}

func (q Query) matches(e Event) bool {
	if !q.StartTime.IsZero() && e.Timestamp.Before(q.StartTime) {
		return false
	}
	if !q.EndTime.IsZero() && e.Timestamp.After(q.EndTime) {
		return false
	}
	if len(q.EventTypes) > 0 {
		found := false
		for _, t := range q.EventTypes {
			if t == e.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Principal != "" && e.Principal != q.Principal {
		return false
	}
	if q.Success != nil && e.Success != *q.Success {
		return false
	}
	return true
}

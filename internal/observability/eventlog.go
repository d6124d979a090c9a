package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Agent event types written to the event log.
const (
	EventSampleCollected = "sample.collected"
	EventBatchPublished  = "batch.published"
	EventBatchSpooled    = "batch.spooled"
	EventPublishFailed   = "publish.failed"
	EventGoalStarted     = "goal.started"
	EventGoalReached     = "goal.reached"
	EventGoalFailed      = "goal.failed"
	EventRouteStopped    = "route.stopped"
	EventAlertFired      = "alert.fired"
	EventAgentStarted    = "agent.started"
	EventAgentStopped    = "agent.stopped"
)

// Event is a single observable agent event.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// Filter specifies criteria for querying events. Zero-value fields match
// everything.
type Filter struct {
	Since *time.Time
	Until *time.Time
	Type  string
	Level string
}

// EventLog is the append-only agent event log.
type EventLog interface {
	Append(event Event) error
	Query(filter Filter) ([]Event, error)
	Close() error
}

// jsonlEventLog implements EventLog on an append-only JSONL file.
type jsonlEventLog struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewJSONLEventLog opens (or creates) the event log at the given path.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

// Append writes one JSON-encoded event followed by a newline.
func (l *jsonlEventLog) Append(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = "INFO"
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	data = append(data, '\n')

	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// Query scans the log file and returns events matching the filter, in write
// order. Malformed lines are skipped.
func (l *jsonlEventLog) Query(filter Filter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if filter.matches(event) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

// Close closes the underlying file.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func (f Filter) matches(event Event) bool {
	if f.Since != nil && event.Time.Before(*f.Since) {
		return false
	}
	if f.Until != nil && event.Time.After(*f.Until) {
		return false
	}
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if f.Level != "" && event.Level != f.Level {
		return false
	}
	return true
}

package core

// EventLogger is the minimal event recording interface core services need.
// It is satisfied by an adapter over the observability event log so core
// does not import that package directly.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

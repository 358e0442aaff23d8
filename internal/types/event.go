package types

import "time"

// EventType represents the kind of parameter-set change event.
type EventType string

const (
	EventTypeAdded   EventType = "added"
	EventTypeUpdated EventType = "updated"
	EventTypeRemoved EventType = "removed"
)

// ParamSetEvent represents a change in the parameter registry, used for
// real-time notifications to watchers like the server's WebSocket hub.
type ParamSetEvent struct {
	// Type indicates the kind of change (added, updated, removed).
	Type EventType
	// Path is the source file the parameter set was extracted from.
	Path string
	// Descriptors is the extracted set (nil for removed events).
	Descriptors []ParameterDescriptor
	// Timestamp records when the change was observed.
	Timestamp time.Time
}

package ir

import "fmt"

// EventType distinguishes the host lifecycle events the engine consumes.
type EventType string

const (
	// EventEntityAdded is published when a device or data point is added.
	EventEntityAdded EventType = "EntityAdded"

	// EventEntityRemoved is published when a device or data point is removed.
	EventEntityRemoved EventType = "EntityRemoved"

	// EventStatusChanged is published when a device changes status.
	EventStatusChanged EventType = "StatusChanged"
)

// Event is a host lifecycle event.
//
// Category and Name identify the entity. OldStatus and NewStatus are only
// set for EventStatusChanged.
type Event struct {
	Type      EventType `json:"type"`
	Category  Category  `json:"category"`
	Name      string    `json:"name"`
	OldStatus Status    `json:"old_status,omitempty"`
	NewStatus Status    `json:"new_status,omitempty"`
}

// EntityAdded creates an EventEntityAdded event.
func EntityAdded(cat Category, name string) Event {
	return Event{Type: EventEntityAdded, Category: cat, Name: name}
}

// EntityRemoved creates an EventEntityRemoved event.
func EntityRemoved(cat Category, name string) Event {
	return Event{Type: EventEntityRemoved, Category: cat, Name: name}
}

// StatusChanged creates an EventStatusChanged event for a device.
func StatusChanged(uid string, from, to Status) Event {
	return Event{
		Type:      EventStatusChanged,
		Category:  CategoryDevice,
		Name:      uid,
		OldStatus: from,
		NewStatus: to,
	}
}

func (e Event) String() string {
	if e.Type == EventStatusChanged {
		return fmt.Sprintf("%s(%s %s: %s -> %s)", e.Type, e.Category, e.Name, e.OldStatus, e.NewStatus)
	}
	return fmt.Sprintf("%s(%s %s)", e.Type, e.Category, e.Name)
}

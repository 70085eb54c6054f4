package enums

import "fmt"

// EventType names the domain events published to Pub/Sub.
type EventType string

const (
	EventOrderCreated EventType = "order.created"
)

var validEventTypes = []EventType{
	EventOrderCreated,
}

// String implements fmt.Stringer.
func (e EventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EventType.
func (e EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventType converts a raw value into an EventType.
func ParseEventType(value string) (EventType, error) {
	e := EventType(value)
	if !e.IsValid() {
		return "", fmt.Errorf("invalid event type %q", value)
	}
	return e, nil
}

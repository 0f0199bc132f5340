package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventEmployeeRegistered EventType = "employee_registered"
	EventEmployeeUpdated    EventType = "employee_updated"
	EventEmployeeDeleted    EventType = "employee_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	EmployeeID string      `json:"employee_id"`
	ActorID    *string     `json:"actor_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, employeeID string, actorID *string, payload interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		EmployeeID: employeeID,
		ActorID:    actorID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}

// EmployeeRegisteredPayload payload.
type EmployeeRegisteredPayload struct {
	Email  string `json:"email"`
	Status string `json:"status"`
}

// EmployeeUpdatedPayload lists the profile fields that changed.
type EmployeeUpdatedPayload struct {
	ChangedFields []string `json:"changed_fields"`
}

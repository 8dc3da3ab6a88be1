package amqp

import (
	"encoding/json"
	"time"
)

// Event actions carried by SubscriptionEvent.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// SubscriptionEvent is a lightweight change notification. It carries only the
// identifiers and display name; consumers needing the full record fetch it
// from the database by ID.
type SubscriptionEvent struct {
	Action    string    `json:"action"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSubscriptionEvent creates a change event stamped with the current time.
func NewSubscriptionEvent(action, id, ownerID, name string) *SubscriptionEvent {
	return &SubscriptionEvent{
		Action:    action,
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *SubscriptionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SubscriptionEventFromJSON creates an event from JSON bytes
func SubscriptionEventFromJSON(data []byte) (*SubscriptionEvent, error) {
	var e SubscriptionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

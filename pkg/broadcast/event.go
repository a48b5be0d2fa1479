package broadcast

import "time"

// EventAcknowledgement is emitted for every processed callback
const EventAcknowledgement = "acknowledgement"

// Event is a named notification delivered to subscribers
type Event struct {
	Name string    `json:"event"`
	Data any       `json:"data"`
	Time time.Time `json:"time"`
}

// NewEvent creates an event stamped with the current time
func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data, Time: time.Now().UTC()}
}

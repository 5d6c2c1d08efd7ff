package services

import "gridrealm/server/messages"

// Audience selects which sessions receive an event
type Audience int

const (
	// AudienceOne delivers to PlayerID only
	AudienceOne Audience = iota
	// AudienceAll delivers to every session
	AudienceAll
)

// Event is an outbound message produced by the simulation
type Event struct {
	Audience Audience
	PlayerID int
	Message  messages.BaseMessage
}

// Dispatcher delivers events to connected sessions. It is always called
// without the world lock held.
type Dispatcher interface {
	Dispatch(events []Event)
}

type discardDispatcher struct{}

func (discardDispatcher) Dispatch([]Event) {}

// Outbox collects events while the world lock is held
type Outbox struct {
	events []Event
}

// Unicast queues a message for one player
func (o *Outbox) Unicast(playerID int, msgType messages.MessageType, payload interface{}) {
	o.events = append(o.events, Event{Audience: AudienceOne, PlayerID: playerID, Message: messages.New(msgType, payload)})
}

// Broadcast queues a message for every session
func (o *Outbox) Broadcast(msgType messages.MessageType, payload interface{}) {
	o.events = append(o.events, Event{Audience: AudienceAll, Message: messages.New(msgType, payload)})
}

// Len returns the number of queued events
func (o *Outbox) Len() int {
	return len(o.events)
}

// Drain returns the queued events and empties the outbox
func (o *Outbox) Drain() []Event {
	events := o.events
	o.events = nil
	return events
}

// flush hands the queued events to d
func (o *Outbox) flush(d Dispatcher) {
	if events := o.Drain(); len(events) > 0 {
		d.Dispatch(events)
	}
}

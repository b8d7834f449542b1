package domain

import "time"

// EventKind distinguishes supervisor events.
type EventKind int

const (
	// EventStatus reports a connection state change.
	EventStatus EventKind = iota
	// EventHeader carries a new block header while Live.
	EventHeader
	// EventMalformed reports a header the node sent but that could not be
	// decoded. The connection stays Live.
	EventMalformed
)

// Event is what the supervisor hands to the dashboard controller.
type Event struct {
	Kind     EventKind
	State    ConnectionState
	Attempt  int           // reconnect attempts since the last time the connection was Live
	Reason   error         // why the connection left Live or failed to get there, or why a header was rejected
	Endpoint string        // node the supervisor is talking to
	Delay    time.Duration // wait before the next attempt, set when Recovering
	Block    *Block        // set for EventHeader
	At       time.Time
}

// StatusEvent builds a connection status event.
func StatusEvent(state ConnectionState, attempt int, reason error, endpoint string, at time.Time) Event {
	return Event{
		Kind:     EventStatus,
		State:    state,
		Attempt:  attempt,
		Reason:   reason,
		Endpoint: endpoint,
		At:       at,
	}
}

// HeaderEvent builds a header event.
func HeaderEvent(block *Block, at time.Time) Event {
	return Event{
		Kind:  EventHeader,
		State: StateLive,
		Block: block,
		At:    at,
	}
}

// MalformedEvent reports a header that was rejected before decoding.
func MalformedEvent(reason error, at time.Time) Event {
	return Event{
		Kind:   EventMalformed,
		State:  StateLive,
		Reason: reason,
		At:     at,
	}
}

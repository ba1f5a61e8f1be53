package events

import "time"

// Kind is the wire tag of an event. For client and server events it is the
// "event" field of the envelope.
type Kind string

// Event is implemented by every event in this package.
type Event interface {
	Kind() Kind
	// Timestamp is when the event was decoded or created locally, not when
	// the peer produced it.
	Timestamp() time.Time
}

// Base is embedded by concrete events.
type Base struct {
	kind Kind
	at   time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, at: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.at }

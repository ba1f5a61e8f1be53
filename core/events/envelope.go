package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope is returned when an inbound frame is not a JSON
// envelope with an event tag.
var ErrMalformedEnvelope = errors.New("malformed event envelope")

// Envelope is the wire unit shared by every client-facing message:
// {"event": <tag>, "data": <payload|absent>}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope builds an envelope, marshalling data unless it is nil.
func NewEnvelope(kind Kind, data any) (Envelope, error) {
	envelope := Envelope{Event: string(kind)}
	if data == nil {
		return envelope, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	envelope.Data = raw
	return envelope, nil
}

// ParseEnvelope decodes a single inbound frame without interpreting the
// payload.
func ParseEnvelope(frame []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if envelope.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event tag", ErrMalformedEnvelope)
	}
	return envelope, nil
}

// HasData reports whether the envelope carries a non-null payload.
func (e Envelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

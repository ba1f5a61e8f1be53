package events

import (
	"encoding/json"
	"strings"
)

const (
	// KindInputAudioAppend carries a base64 audio chunk from the client.
	KindInputAudioAppend Kind = "input_audio_buffer.append"
	// KindSpeakerSwitch carries the client's view of who is speaking.
	KindSpeakerSwitch Kind = "current_speaker.switch"
)

// ClientEvent is the closed set of events decoded from the client
// connection. Unrecognized tags decode to UnknownClientEvent.
type ClientEvent interface {
	Event
	isClientEvent()
}

// InputAudioAppended forwards a base64 audio chunk to transcription.
type InputAudioAppended struct {
	Base
	Audio string
}

// NewInputAudioAppended creates an input audio event.
func NewInputAudioAppended(audio string) InputAudioAppended {
	return InputAudioAppended{Base: NewBase(KindInputAudioAppend), Audio: audio}
}

// SpeakerSwitched updates the current speaker. The value is kept verbatim.
type SpeakerSwitched struct {
	Base
	Speaker string
}

// NewSpeakerSwitched creates a speaker switch event.
func NewSpeakerSwitched(speaker string) SpeakerSwitched {
	return SpeakerSwitched{Base: NewBase(KindSpeakerSwitch), Speaker: speaker}
}

// UnknownClientEvent is any envelope with a tag the relay does not handle.
type UnknownClientEvent struct {
	Base
	Data json.RawMessage
}

func (InputAudioAppended) isClientEvent() {}
func (SpeakerSwitched) isClientEvent()    {}
func (UnknownClientEvent) isClientEvent() {}

// DecodeClientEvent decodes one client frame into a ClientEvent. Only frames
// that are not envelopes at all produce an error.
func DecodeClientEvent(frame []byte) (ClientEvent, error) {
	envelope, err := ParseEnvelope(frame)
	if err != nil {
		return nil, err
	}

	switch Kind(envelope.Event) {
	case KindInputAudioAppend:
		return NewInputAudioAppended(payloadString(envelope)), nil
	case KindSpeakerSwitch:
		return NewSpeakerSwitched(payloadString(envelope)), nil
	default:
		return UnknownClientEvent{Base: NewBase(Kind(envelope.Event)), Data: envelope.Data}, nil
	}
}

// payloadString returns a string payload, or the raw JSON text of any other
// payload so nothing the client sent is silently rewritten.
func payloadString(envelope Envelope) string {
	if !envelope.HasData() {
		return ""
	}

	var value string
	if err := json.Unmarshal(envelope.Data, &value); err == nil {
		return value
	}
	return strings.TrimSpace(string(envelope.Data))
}

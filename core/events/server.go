package events

const (
	// KindUserSpeechStarted notifies the client that user speech began.
	KindUserSpeechStarted Kind = "user.speech_started"
	// KindUserSpeechStopped notifies the client that user speech ended.
	KindUserSpeechStopped Kind = "user.speech_stopped"
	// KindOutputAudioAppend carries a base64 chunk of synthesized speech.
	KindOutputAudioAppend Kind = "output_audio_buffer.append"
)

// ServerEvent is the closed set of events the relay sends to the client.
type ServerEvent interface {
	Event
	Envelope() (Envelope, error)
}

// UserSpeechStarted has no payload.
type UserSpeechStarted struct{ Base }

// NewUserSpeechStarted creates a user speech started notification.
func NewUserSpeechStarted() UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted)}
}

func (e UserSpeechStarted) Envelope() (Envelope, error) { return NewEnvelope(e.Kind(), nil) }

// UserSpeechStopped has no payload.
type UserSpeechStopped struct{ Base }

// NewUserSpeechStopped creates a user speech stopped notification.
func NewUserSpeechStopped() UserSpeechStopped {
	return UserSpeechStopped{Base: NewBase(KindUserSpeechStopped)}
}

func (e UserSpeechStopped) Envelope() (Envelope, error) { return NewEnvelope(e.Kind(), nil) }

// OutputAudioAppended carries one base64 encoded audio chunk.
type OutputAudioAppended struct {
	Base
	Audio string
}

// NewOutputAudioAppended creates an output audio event.
func NewOutputAudioAppended(audio string) OutputAudioAppended {
	return OutputAudioAppended{Base: NewBase(KindOutputAudioAppend), Audio: audio}
}

func (e OutputAudioAppended) Envelope() (Envelope, error) { return NewEnvelope(e.Kind(), e.Audio) }

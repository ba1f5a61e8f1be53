package events

const (
	// KindSpeechStarted is emitted by a transcription backend when it detects
	// the start of speech.
	KindSpeechStarted Kind = "transcription.speech_started"
	// KindSpeechStopped is emitted when detected speech ends.
	KindSpeechStopped Kind = "transcription.speech_stopped"
	// KindTranscriptionCompleted carries the transcript of one utterance.
	KindTranscriptionCompleted Kind = "transcription.completed"
	// KindTranscriptionFailed reports that an utterance could not be
	// transcribed.
	KindTranscriptionFailed Kind = "transcription.failed"
	// KindBackendError reports a backend side error that did not close the
	// connection.
	KindBackendError Kind = "transcription.error"
)

// TranscriptionEvent is the closed set of events a transcription backend
// produces after decoding at the channel boundary.
type TranscriptionEvent interface {
	Event
	isTranscriptionEvent()
}

type SpeechStarted struct{ Base }

func NewSpeechStarted() SpeechStarted { return SpeechStarted{Base: NewBase(KindSpeechStarted)} }

type SpeechStopped struct{ Base }

func NewSpeechStopped() SpeechStopped { return SpeechStopped{Base: NewBase(KindSpeechStopped)} }

// TranscriptionCompleted is one utterance.
type TranscriptionCompleted struct {
	Base
	ItemID     string
	Transcript string
}

func NewTranscriptionCompleted(itemID, transcript string) TranscriptionCompleted {
	return TranscriptionCompleted{Base: NewBase(KindTranscriptionCompleted), ItemID: itemID, Transcript: transcript}
}

type TranscriptionFailed struct {
	Base
	ItemID  string
	Message string
}

func NewTranscriptionFailed(itemID, message string) TranscriptionFailed {
	return TranscriptionFailed{Base: NewBase(KindTranscriptionFailed), ItemID: itemID, Message: message}
}

type BackendError struct {
	Base
	Code    string
	Message string
}

func NewBackendError(code, message string) BackendError {
	return BackendError{Base: NewBase(KindBackendError), Code: code, Message: message}
}

// UnknownTranscriptionEvent keeps the backend's own type tag.
type UnknownTranscriptionEvent struct {
	Base
	Type string
}

func NewUnknownTranscriptionEvent(backendType string) UnknownTranscriptionEvent {
	return UnknownTranscriptionEvent{Base: NewBase(Kind(backendType)), Type: backendType}
}

func (SpeechStarted) isTranscriptionEvent()             {}
func (SpeechStopped) isTranscriptionEvent()             {}
func (TranscriptionCompleted) isTranscriptionEvent()    {}
func (TranscriptionFailed) isTranscriptionEvent()       {}
func (BackendError) isTranscriptionEvent()              {}
func (UnknownTranscriptionEvent) isTranscriptionEvent() {}

package openai

// Client and server event types of the realtime transcription API.
const (
	typeTranscriptionSessionUpdate = "transcription_session.update"
	typeInputAudioBufferAppend     = "input_audio_buffer.append"

	typeSpeechStarted          = "input_audio_buffer.speech_started"
	typeSpeechStopped          = "input_audio_buffer.speech_stopped"
	typeTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	typeTranscriptionFailed    = "conversation.item.input_audio_transcription.failed"
	typeError                  = "error"
)

type sessionUpdate struct {
	EventID string               `json:"event_id,omitempty"`
	Type    string               `json:"type"`
	Session transcriptionSession `json:"session"`
}

type transcriptionSession struct {
	InputAudioFormat         string                   `json:"input_audio_format"`
	InputAudioTranscription  inputAudioTranscription  `json:"input_audio_transcription"`
	TurnDetection            turnDetection            `json:"turn_detection"`
	InputAudioNoiseReduction inputAudioNoiseReduction `json:"input_audio_noise_reduction"`
	Include                  []string                 `json:"include,omitempty"`
}

type inputAudioTranscription struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
}

type turnDetection struct {
	Type      string `json:"type"`
	Eagerness string `json:"eagerness,omitempty"`
}

type inputAudioNoiseReduction struct {
	Type string `json:"type"`
}

type audioAppend struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
	Audio   string `json:"audio"`
}

type serverEvent struct {
	Type       string       `json:"type"`
	ItemID     string       `json:"item_id,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	Error      *serverError `json:"error,omitempty"`
}

type serverError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

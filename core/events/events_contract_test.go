package events

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "input audio appended", event: NewInputAudioAppended("AAA="), expected: KindInputAudioAppend},
		{name: "speaker switched", event: NewSpeakerSwitched("ai"), expected: KindSpeakerSwitch},
		{name: "user speech started", event: NewUserSpeechStarted(), expected: KindUserSpeechStarted},
		{name: "user speech stopped", event: NewUserSpeechStopped(), expected: KindUserSpeechStopped},
		{name: "output audio appended", event: NewOutputAudioAppended("AAA="), expected: KindOutputAudioAppend},
		{name: "speech started", event: NewSpeechStarted(), expected: KindSpeechStarted},
		{name: "speech stopped", event: NewSpeechStopped(), expected: KindSpeechStopped},
		{name: "transcription completed", event: NewTranscriptionCompleted("item", "hello"), expected: KindTranscriptionCompleted},
		{name: "transcription failed", event: NewTranscriptionFailed("item", "boom"), expected: KindTranscriptionFailed},
		{name: "backend error", event: NewBackendError("code", "boom"), expected: KindBackendError},
		{name: "unknown transcription event", event: NewUnknownTranscriptionEvent("session.created"), expected: Kind("session.created")},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestDecodeClientEvent(t *testing.T) {
	testCases := []struct {
		name  string
		frame string
		check func(t *testing.T, event ClientEvent)
	}{
		{
			name:  "audio append",
			frame: `{"event":"input_audio_buffer.append","data":"AAEC"}`,
			check: func(t *testing.T, event ClientEvent) {
				audio, ok := event.(InputAudioAppended)
				if !ok || audio.Audio != "AAEC" {
					t.Fatalf("expected audio append with AAEC, got %#v", event)
				}
			},
		},
		{
			name:  "speaker switch to ai",
			frame: `{"event":"current_speaker.switch","data":"ai"}`,
			check: func(t *testing.T, event ClientEvent) {
				switched, ok := event.(SpeakerSwitched)
				if !ok || switched.Speaker != "ai" {
					t.Fatalf("expected speaker switch to ai, got %#v", event)
				}
			},
		},
		{
			name:  "speaker switch keeps unknown token",
			frame: `{"event":"current_speaker.switch","data":"none"}`,
			check: func(t *testing.T, event ClientEvent) {
				if switched, ok := event.(SpeakerSwitched); !ok || switched.Speaker != "none" {
					t.Fatalf("expected speaker switch to none, got %#v", event)
				}
			},
		},
		{
			name:  "speaker switch with non-string payload",
			frame: `{"event":"current_speaker.switch","data":42}`,
			check: func(t *testing.T, event ClientEvent) {
				if switched, ok := event.(SpeakerSwitched); !ok || switched.Speaker != "42" {
					t.Fatalf("expected raw payload to be kept, got %#v", event)
				}
			},
		},
		{
			name:  "unknown tag",
			frame: `{"event":"foo"}`,
			check: func(t *testing.T, event ClientEvent) {
				unknown, ok := event.(UnknownClientEvent)
				if !ok || unknown.Kind() != Kind("foo") {
					t.Fatalf("expected unknown event foo, got %#v", event)
				}
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			event, err := DecodeClientEvent([]byte(testCase.frame))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testCase.check(t, event)
		})
	}
}

func TestDecodeClientEventRejectsNonEnvelopes(t *testing.T) {
	for _, frame := range []string{`not json`, `{"data":"x"}`, `[]`} {
		if _, err := DecodeClientEvent([]byte(frame)); !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("expected ErrMalformedEnvelope for %q, got %v", frame, err)
		}
	}
}

func TestServerEventsEncodeToWireShape(t *testing.T) {
	started, err := NewUserSpeechStarted().Envelope()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, _ := json.Marshal(started)
	if string(raw) != `{"event":"user.speech_started"}` {
		t.Fatalf("unexpected speech started frame: %s", raw)
	}

	audio, err := NewOutputAudioAppended("AAEC").Envelope()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, _ = json.Marshal(audio)
	if string(raw) != `{"event":"output_audio_buffer.append","data":"AAEC"}` {
		t.Fatalf("unexpected audio frame: %s", raw)
	}
}

package deepgram

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/audio"
	"github.com/koscakluka/ema-relay/core/events"
	"github.com/koscakluka/ema-relay/core/speechtotext"
)

func results(transcript string, isFinal, speechFinal bool) []byte {
	final, speech := "false", "false"
	if isFinal {
		final = "true"
	}
	if speechFinal {
		speech = "true"
	}
	return []byte(`{"type":"Results","is_final":` + final + `,"speech_final":` + speech +
		`,"channel":{"alternatives":[{"transcript":"` + transcript + `"}]}}`)
}

func kinds(evts []events.TranscriptionEvent) []events.Kind {
	out := []events.Kind{}
	for _, event := range evts {
		out = append(out, event.Kind())
	}
	return out
}

func TestProcessMessageAccumulatesFinalResultsUntilSpeechFinal(t *testing.T) {
	stream := &transcriptionStream{}

	if got := stream.processMessage([]byte(`{"type":"SpeechStarted"}`)); len(got) != 1 || got[0].Kind() != events.KindSpeechStarted {
		t.Fatalf("expected speech started, got %v", kinds(got))
	}
	if got := stream.processMessage(results("hel", false, false)); len(got) != 0 {
		t.Fatalf("expected interim results to be ignored, got %v", kinds(got))
	}
	if got := stream.processMessage(results("hello", true, false)); len(got) != 0 {
		t.Fatalf("expected final result to accumulate silently, got %v", kinds(got))
	}

	got := stream.processMessage(results("world", true, true))
	if len(got) != 2 {
		t.Fatalf("expected completed and stopped events, got %v", kinds(got))
	}
	completed, ok := got[0].(events.TranscriptionCompleted)
	if !ok || completed.Transcript != "hello world" {
		t.Fatalf("unexpected completed event: %#v", got[0])
	}
	if got[1].Kind() != events.KindSpeechStopped {
		t.Fatalf("expected speech stopped last, got %s", got[1].Kind())
	}

	if got := stream.processMessage([]byte(`{"type":"UtteranceEnd"}`)); len(got) != 0 {
		t.Fatalf("expected utterance end after speech final to be ignored, got %v", kinds(got))
	}
}

func TestProcessMessageUtteranceEndFlushesSegment(t *testing.T) {
	stream := &transcriptionStream{}
	stream.processMessage([]byte(`{"type":"SpeechStarted"}`))
	stream.processMessage(results("are you there", true, false))

	got := stream.processMessage([]byte(`{"type":"UtteranceEnd"}`))
	if len(got) != 2 || got[0].(events.TranscriptionCompleted).Transcript != "are you there" {
		t.Fatalf("unexpected events: %v", kinds(got))
	}
}

func TestProcessMessageSpeechWithoutWordsOnlyStops(t *testing.T) {
	stream := &transcriptionStream{}
	stream.processMessage([]byte(`{"type":"SpeechStarted"}`))

	got := stream.processMessage([]byte(`{"type":"UtteranceEnd"}`))
	if len(got) != 1 || got[0].Kind() != events.KindSpeechStopped {
		t.Fatalf("expected only speech stopped, got %v", kinds(got))
	}
}

func TestProcessMessageUnknownAndMalformed(t *testing.T) {
	stream := &transcriptionStream{}
	if got := stream.processMessage([]byte(`{"type":"Metadata"}`)); len(got) != 1 || got[0].Kind() != events.Kind("Metadata") {
		t.Fatalf("expected unknown event, got %v", kinds(got))
	}
	if got := stream.processMessage([]byte(`garbage`)); len(got) != 0 {
		t.Fatalf("expected malformed message to be dropped, got %v", kinds(got))
	}
}

func TestConnectStreamsDecodedAudio(t *testing.T) {
	received := make(chan []byte, 4)
	queries := make(chan string, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		if got := r.Header.Get("Authorization"); got != "Token key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.BinaryMessage {
			received <- msg
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SpeechStarted"}`))
		_ = conn.WriteMessage(websocket.TextMessage, results("hi", true, true))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := NewTranscriptionClient("key",
		WithURL("ws"+strings.TrimPrefix(server.URL, "http")),
		WithoutSilenceFill(),
		WithTranscriptionOptions(speechtotext.WithEncodingInfo(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16})),
	)
	stream, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	query := <-queries
	if !strings.Contains(query, "sample_rate=16000") || !strings.Contains(query, "vad_events=true") {
		t.Fatalf("unexpected query %q", query)
	}

	if err := stream.AppendAudio("AAEC"); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
	select {
	case msg := <-received:
		if string(msg) != "\x00\x01\x02" {
			t.Fatalf("expected decoded audio bytes, got %v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for audio")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	expected := []events.Kind{events.KindSpeechStarted, events.KindTranscriptionCompleted, events.KindSpeechStopped}
	for _, kind := range expected {
		event, err := stream.Recv(ctx)
		if err != nil {
			t.Fatalf("unexpected recv error: %v", err)
		}
		if event.Kind() != kind {
			t.Fatalf("expected %s, got %s", kind, event.Kind())
		}
	}
}

func TestAppendAudioRejectsInvalidBase64(t *testing.T) {
	stream := &transcriptionStream{inbox: speechtotext.NewInbox(1)}
	if err := stream.AppendAudio("not base64!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
}

func TestConvertEncodingRejectsUnsupportedRates(t *testing.T) {
	if _, err := convertEncoding(audio.EncodingInfo{SampleRate: 44100, Format: audio.EncodingLinear16}); err == nil {
		t.Fatalf("expected unsupported sample rate error")
	}
	if _, err := convertEncoding(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}); err == nil {
		t.Fatalf("expected mulaw to require 8000Hz")
	}
}

func TestCloseReleasesStalledAudioWrite(t *testing.T) {
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewTranscriptionClient("key",
		WithURL("ws"+strings.TrimPrefix(server.URL, "http")),
		WithoutSilenceFill(),
		WithTranscriptionOptions(speechtotext.WithWriteTimeout(time.Minute)),
	)
	stream, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunk := base64.StdEncoding.EncodeToString(make([]byte, 256<<10))
	failed := make(chan error, 1)
	go func() {
		for {
			if err := stream.AppendAudio(chunk); err != nil {
				failed <- err
				return
			}
		}
	}()
	time.Sleep(500 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = stream.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatalf("close blocked behind a stalled write")
	}
	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatalf("stalled write was not released by close")
	}
}

func TestAppendAudioTimesOutWhenBackendStopsReading(t *testing.T) {
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewTranscriptionClient("key",
		WithURL("ws"+strings.TrimPrefix(server.URL, "http")),
		WithoutSilenceFill(),
		WithTranscriptionOptions(speechtotext.WithWriteTimeout(200*time.Millisecond)),
	)
	stream, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	chunk := base64.StdEncoding.EncodeToString(make([]byte, 256<<10))
	deadline := time.Now().Add(10 * time.Second)
	for {
		if err := stream.AppendAudio(chunk); err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("audio writes never timed out")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := stream.Recv(ctx); !errors.Is(err, speechtotext.ErrStreamClosed) {
		t.Fatalf("expected stream to end with ErrStreamClosed, got %v", err)
	}
}

package orchestration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/audio"
	"github.com/koscakluka/ema-relay/core/events"
	"github.com/koscakluka/ema-relay/core/llms"
	"github.com/koscakluka/ema-relay/core/speechtotext"
	"github.com/koscakluka/ema-relay/core/texttospeech"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type transcriberFunc func(ctx context.Context) (speechtotext.Stream, error)

func (f transcriberFunc) Connect(ctx context.Context) (speechtotext.Stream, error) { return f(ctx) }

type fakeStream struct {
	inbox  *speechtotext.Inbox
	closed atomic.Bool

	mu    sync.Mutex
	audio []string
}

func newFakeStream() *fakeStream {
	return &fakeStream{inbox: speechtotext.NewInbox(16)}
}

func (s *fakeStream) AppendAudio(audio string) error {
	if s.closed.Load() {
		return speechtotext.ErrStreamClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, audio)
	return nil
}

func (s *fakeStream) Recv(ctx context.Context) (events.TranscriptionEvent, error) {
	return s.inbox.Recv(ctx)
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	s.inbox.Finish(nil)
	return nil
}

func (s *fakeStream) push(event events.TranscriptionEvent) {
	s.inbox.Push(event)
}

func (s *fakeStream) transcript(text string) {
	s.push(events.NewTranscriptionCompleted("item", text))
}

func (s *fakeStream) receivedAudio() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.audio...)
}

// generatorStub records every history it is asked to answer. reply receives
// the 1-based call number.
type generatorStub struct {
	reply func(call int, messages []llms.Message) (string, error)

	mu    sync.Mutex
	calls [][]llms.Message
}

func (g *generatorStub) Generate(_ context.Context, messages []llms.Message) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, append([]llms.Message(nil), messages...))
	call := len(g.calls)
	g.mu.Unlock()

	if g.reply == nil {
		return "ok", nil
	}
	return g.reply(call, messages)
}

func (g *generatorStub) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *generatorStub) call(t *testing.T, n int) []llms.Message {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if n > len(g.calls) {
		t.Fatalf("expected at least %d generator calls, got %d", n, len(g.calls))
	}
	return g.calls[n-1]
}

type countingMetrics struct {
	sessionsStarted     atomic.Int32
	sessionsEnded       atomic.Int32
	utterances          atomic.Int32
	utterancesDropped   atomic.Int32
	generationFailures  atomic.Int32
	synthesisFailures   atomic.Int32
	audioChunks         atomic.Int32
	latencyObservations atomic.Int32
}

func (m *countingMetrics) SessionStarted()               { m.sessionsStarted.Add(1) }
func (m *countingMetrics) SessionEnded()                 { m.sessionsEnded.Add(1) }
func (m *countingMetrics) UtteranceDispatched()          { m.utterances.Add(1) }
func (m *countingMetrics) UtteranceDropped()             { m.utterancesDropped.Add(1) }
func (m *countingMetrics) GenerationFailed()             { m.generationFailures.Add(1) }
func (m *countingMetrics) SynthesisFailed()              { m.synthesisFailures.Add(1) }
func (m *countingMetrics) AudioChunkSent()               { m.audioChunks.Add(1) }
func (m *countingMetrics) ResponseLatency(time.Duration) { m.latencyObservations.Add(1) }

func silentSynthesizer() texttospeech.Synthesizer {
	return texttospeech.SynthesizerFunc(func(context.Context, string) ([]audio.Chunk, error) {
		return nil, nil
	})
}

type relayHarness struct {
	stream *fakeStream
	conn   *websocket.Conn
	result chan error
}

// startRelay serves one session backed by a fake transcription stream and
// dials it. Options are applied after the defaults.
func startRelay(t *testing.T, opts ...OrchestratorOption) *relayHarness {
	t.Helper()

	stream := newFakeStream()
	transcriber := transcriberFunc(func(context.Context) (speechtotext.Stream, error) {
		return stream, nil
	})
	return startRelayWith(t, stream, transcriber, opts...)
}

func startRelayWith(t *testing.T, stream *fakeStream, transcriber speechtotext.Transcriber, opts ...OrchestratorOption) *relayHarness {
	t.Helper()

	defaults := []OrchestratorOption{
		WithTranscriber(transcriber),
		WithGenerator(&generatorStub{}),
		WithSynthesizer(silentSynthesizer()),
		WithLogger(discardLogger),
	}
	o := NewOrchestrator(append(defaults, opts...)...)

	h := &relayHarness{stream: stream, result: make(chan error, 1)}
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.result <- err
			return
		}
		h.result <- o.Start(context.Background(), conn)
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("failed to dial relay: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	h.conn = conn

	return h
}

func (h *relayHarness) send(t *testing.T, kind events.Kind, data any) {
	t.Helper()

	envelope, err := events.NewEnvelope(kind, data)
	if err != nil {
		t.Fatalf("failed to build envelope: %v", err)
	}
	if err := h.conn.WriteJSON(envelope); err != nil {
		t.Fatalf("failed to send %s: %v", kind, err)
	}
}

func (h *relayHarness) sendRaw(t *testing.T, frame string) {
	t.Helper()

	if err := h.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("failed to send raw frame: %v", err)
	}
}

// switchSpeaker sends a speaker switch and waits until the relay has handled
// it. Client frames are handled in order, so the audio marker sent after the
// switch arriving at the stream proves the switch was applied.
func (h *relayHarness) switchSpeaker(t *testing.T, speaker string) {
	t.Helper()

	h.send(t, events.KindSpeakerSwitch, speaker)
	marker := "marker-" + speaker
	h.send(t, events.KindInputAudioAppend, marker)
	waitForCondition(t, 2*time.Second, "speaker switch to "+speaker, func() bool {
		received := h.stream.receivedAudio()
		return len(received) > 0 && received[len(received)-1] == marker
	})
}

func (h *relayHarness) readEnvelope(t *testing.T) events.Envelope {
	t.Helper()

	if err := h.conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	_, frame, err := h.conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}

	envelope, err := events.ParseEnvelope(frame)
	if err != nil {
		t.Fatalf("failed to parse frame %q: %v", frame, err)
	}
	return envelope
}

func (h *relayHarness) readAudio(t *testing.T) string {
	t.Helper()

	envelope := h.readEnvelope(t)
	if got := events.Kind(envelope.Event); got != events.KindOutputAudioAppend {
		t.Fatalf("expected %s, got %s", events.KindOutputAudioAppend, got)
	}

	var data string
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		t.Fatalf("failed to decode audio payload: %v", err)
	}
	return data
}

func (h *relayHarness) expectSilence(t *testing.T, wait time.Duration) {
	t.Helper()

	if err := h.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	if _, frame, err := h.conn.ReadMessage(); err == nil {
		t.Fatalf("expected no frame, got %q", frame)
	}
}

func (h *relayHarness) waitResult(t *testing.T) error {
	t.Helper()

	select {
	case err := <-h.result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for session to end")
		return nil
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

func hasMessage(messages []llms.Message, role llms.Role, content string) bool {
	for _, message := range messages {
		if message.Role == role && message.Content == content {
			return true
		}
	}
	return false
}

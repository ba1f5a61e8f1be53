package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/events"
	"github.com/koscakluka/ema-relay/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultURL      = "wss://api.openai.com/v1/realtime?intent=transcription"
	DefaultModel    = "gpt-4o-transcribe"
	DefaultLanguage = "en"

	inboxSize = 64
)

// TranscriptionClient connects to the OpenAI realtime transcription API.
type TranscriptionClient struct {
	apiKey  string
	url     string
	dialer  *websocket.Dialer
	options speechtotext.TranscriptionOptions
}

type ClientOption func(*TranscriptionClient)

// WithURL overrides the realtime endpoint.
func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) {
		if url != "" {
			c.url = url
		}
	}
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *TranscriptionClient) { c.dialer = dialer }
}

func WithTranscriptionOptions(opts ...speechtotext.TranscriptionOption) ClientOption {
	return func(c *TranscriptionClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewTranscriptionClient(apiKey string, opts ...ClientOption) *TranscriptionClient {
	client := &TranscriptionClient{
		apiKey: apiKey,
		url:    DefaultURL,
		dialer: websocket.DefaultDialer,
		options: speechtotext.NewOptions(
			speechtotext.WithModel(DefaultModel),
			speechtotext.WithLanguage(DefaultLanguage),
		),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Connect dials the backend and configures the transcription session. The
// returned stream is ready to accept audio.
func (c *TranscriptionClient) Connect(ctx context.Context) (speechtotext.Stream, error) {
	ctx, span := tracer.Start(ctx, "connect transcription")
	defer span.End()
	span.SetAttributes(
		attribute.String("transcription.model", c.options.Model),
		attribute.String("transcription.language", c.options.Language),
	)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := c.dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		if resp != nil {
			span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
			err = fmt.Errorf("failed to open socket connection to openai (status %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("failed to open socket connection to openai: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, err
	}

	stream := &transcriptionStream{
		conn:         conn,
		inbox:        speechtotext.NewInbox(inboxSize),
		writeTimeout: c.options.WriteTimeout,
	}

	if err := stream.writeJSON(sessionUpdate{
		EventID: newEventID(),
		Type:    typeTranscriptionSessionUpdate,
		Session: transcriptionSession{
			InputAudioFormat: "pcm16",
			InputAudioTranscription: inputAudioTranscription{
				Model:    c.options.Model,
				Language: c.options.Language,
			},
			TurnDetection:            turnDetection{Type: "semantic_vad", Eagerness: "medium"},
			InputAudioNoiseReduction: inputAudioNoiseReduction{Type: "near_field"},
			Include:                  []string{"item.input_audio_transcription.logprobs"},
		},
	}); err != nil {
		_ = conn.Close()
		err = fmt.Errorf("failed to configure transcription session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "session update failed")
		return nil, err
	}

	go stream.readMessages()

	return stream, nil
}

type transcriptionStream struct {
	conn         *websocket.Conn
	connMu       sync.Mutex
	writeTimeout time.Duration

	inbox     *speechtotext.Inbox
	closeOnce sync.Once
	closeErr  error
}

func (s *transcriptionStream) AppendAudio(audio string) error {
	select {
	case <-s.inbox.Done():
		return speechtotext.ErrStreamClosed
	default:
	}

	if err := s.writeJSON(audioAppend{Type: typeInputAudioBufferAppend, Audio: audio}); err != nil {
		// A timed out write leaves the socket unusable.
		s.inbox.Finish(fmt.Errorf("%w: %v", speechtotext.ErrStreamClosed, err))
		return fmt.Errorf("failed to write to openai transcription: %w", err)
	}
	return nil
}

func (s *transcriptionStream) Recv(ctx context.Context) (events.TranscriptionEvent, error) {
	return s.inbox.Recv(ctx)
}

func (s *transcriptionStream) Close() error {
	s.closeOnce.Do(func() {
		s.inbox.Finish(nil)

		// WriteControl and Close are safe next to a writer holding connMu.
		// Closing the socket releases a write stuck on an unresponsive
		// backend.
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadlineSoon())
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *transcriptionStream) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteJSON(v)
}

func (s *transcriptionStream) readMessages() {
	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, websocket.ErrCloseSent) {
				logger.Debug("openai transcription read ended", "error", err)
			}
			s.inbox.Finish(fmt.Errorf("%w: %v", speechtotext.ErrStreamClosed, err))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		event, ok := decodeServerEvent(msg)
		if !ok {
			continue
		}
		if !s.inbox.Push(event) {
			return
		}
	}
}

// decodeServerEvent maps one backend message onto the transcription event
// union. Messages that are not JSON are dropped.
func decodeServerEvent(msg []byte) (events.TranscriptionEvent, bool) {
	var parsed serverEvent
	if err := json.Unmarshal(msg, &parsed); err != nil {
		logger.Debug("failed to unmarshal openai transcription message", "error", err)
		return nil, false
	}

	switch parsed.Type {
	case typeSpeechStarted:
		return events.NewSpeechStarted(), true
	case typeSpeechStopped:
		return events.NewSpeechStopped(), true
	case typeTranscriptionCompleted:
		return events.NewTranscriptionCompleted(parsed.ItemID, parsed.Transcript), true
	case typeTranscriptionFailed:
		message := ""
		if parsed.Error != nil {
			message = parsed.Error.Message
		}
		return events.NewTranscriptionFailed(parsed.ItemID, message), true
	case typeError:
		if parsed.Error == nil {
			return events.NewBackendError("", ""), true
		}
		return events.NewBackendError(parsed.Error.Code, parsed.Error.Message), true
	default:
		return events.NewUnknownTranscriptionEvent(parsed.Type), true
	}
}

func newEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

package deepgram

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/audio"
	"github.com/koscakluka/ema-relay/core/events"
	"github.com/koscakluka/ema-relay/core/speechtotext"
	"github.com/koscakluka/ema-relay/internal/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	inboxSize         = 64
	closeWriteTimeout = time.Second
)

var (
	keepAliveMessage   = []byte(`{"type":"KeepAlive"}`)
	closeStreamMessage = []byte(`{"type":"` + string(api.TypeCloseStreamResponse) + `"}`)
)

func (c *TranscriptionClient) Connect(ctx context.Context) (speechtotext.Stream, error) {
	ctx, span := tracer.Start(ctx, "connect transcription")
	defer span.End()

	encoding, err := convertEncoding(c.options.EncodingInfo)
	if err != nil {
		err = fmt.Errorf("invalid encoding: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid encoding")
		return nil, err
	}

	listenURL, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.options.Model)
	queryParams.Set("language", c.options.Language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	listenURL.RawQuery = queryParams.Encode()
	span.SetAttributes(attribute.String("transcription.model", c.options.Model))

	conn, _, err := c.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		err = fmt.Errorf("failed to open socket connection to deepgram: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	stream := &transcriptionStream{
		conn:         conn,
		inbox:        speechtotext.NewInbox(inboxSize),
		cancel:       cancel,
		writeTimeout: c.options.WriteTimeout,
	}
	stream.lastMsgTs.Store(time.Now().UnixNano())

	go stream.readAndProcessMessages()
	if c.keepSilence {
		go stream.generateSilence(streamCtx, c.options.EncodingInfo)
	}

	return stream, nil
}

type transcriptionStream struct {
	conn         *websocket.Conn
	connMu       sync.Mutex
	writeTimeout time.Duration

	inbox     *speechtotext.Inbox
	cancel    context.CancelFunc
	lastMsgTs atomic.Int64

	// Only touched by the read loop.
	accumulatedTranscript []string
	unendedSegment        bool

	closeOnce sync.Once
	closeErr  error
}

// AppendAudio decodes the base64 chunk and sends it as a binary frame, which
// is the only audio framing Deepgram accepts.
func (s *transcriptionStream) AppendAudio(encoded string) error {
	select {
	case <-s.inbox.Done():
		return speechtotext.ErrStreamClosed
	default:
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("invalid base64 audio: %w", err)
	}

	s.lastMsgTs.Store(time.Now().UnixNano())
	if err := s.writeMessage(websocket.BinaryMessage, data); err != nil {
		// A timed out write leaves the socket unusable.
		s.inbox.Finish(fmt.Errorf("%w: %v", speechtotext.ErrStreamClosed, err))
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// writeMessage serializes writers and bounds each write by writeTimeout.
func (s *transcriptionStream) writeMessage(messageType int, data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.writeLocked(messageType, data)
}

func (s *transcriptionStream) writeLocked(messageType int, data []byte) error {
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(messageType, data)
}

func (s *transcriptionStream) Recv(ctx context.Context) (events.TranscriptionEvent, error) {
	return s.inbox.Recv(ctx)
}

func (s *transcriptionStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.inbox.Finish(nil)

		// CloseStream lets Deepgram flush, but it is skipped when a writer is
		// stuck holding connMu. Closing the socket releases that writer.
		if s.connMu.TryLock() {
			_ = s.conn.SetWriteDeadline(time.Now().Add(closeWriteTimeout))
			_ = s.conn.WriteMessage(websocket.TextMessage, closeStreamMessage)
			s.connMu.Unlock()
		}

		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *transcriptionStream) sendKeepAlive() {
	if err := s.writeMessage(websocket.TextMessage, keepAliveMessage); err != nil {
		logger.Debug("failed to write keep alive to deepgram", "error", err)
	}
}

func (s *transcriptionStream) sendSilence(audio []byte) error {
	if err := s.writeMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

func (s *transcriptionStream) readAndProcessMessages() {
	defer s.cancel()

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, websocket.ErrCloseSent) {
				logger.Debug("deepgram read ended", "error", err)
			}
			s.inbox.Finish(fmt.Errorf("%w: %v", speechtotext.ErrStreamClosed, err))
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		for _, event := range s.processMessage(msg) {
			if !s.inbox.Push(event) {
				return
			}
		}
	}
}

// processMessage turns one Deepgram message into zero or more transcription
// events. Final results accumulate until Deepgram marks the end of speech.
func (s *transcriptionStream) processMessage(msg []byte) []events.TranscriptionEvent {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Debug("failed to unmarshal deepgram message", "error", err)
		return nil
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Debug("failed to unmarshal deepgram results", "error", err)
			return nil
		}
		if !msgResp.IsFinal {
			return nil
		}
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
			if len(transcript) > 0 {
				s.accumulatedTranscript = append(s.accumulatedTranscript, transcript)
			}
		}
		if msgResp.SpeechFinal {
			return s.onSpeechEnded()
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment {
			return s.onSpeechEnded()
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		return []events.TranscriptionEvent{events.NewSpeechStarted()}

	default:
		return []events.TranscriptionEvent{events.NewUnknownTranscriptionEvent(parsedMsg.Type)}
	}

	return nil
}

func (s *transcriptionStream) onSpeechEnded() []events.TranscriptionEvent {
	s.unendedSegment = false
	fullTranscript := strings.Join(s.accumulatedTranscript, " ")
	s.accumulatedTranscript = nil

	ended := []events.TranscriptionEvent{}
	if len(fullTranscript) > 0 {
		ended = append(ended, events.NewTranscriptionCompleted("", fullTranscript))
	}
	return append(ended, events.NewSpeechStopped())
}

func (s *transcriptionStream) sinceLastMessage() time.Duration {
	return time.Since(time.Unix(0, s.lastMsgTs.Load()))
}

func (s *transcriptionStream) generateSilence(ctx context.Context, encoding audio.EncodingInfo) {
	type silenceGeneratorState string
	const (
		silenceGeneratorStateWaiting   silenceGeneratorState = "waiting"
		silenceGeneratorStateSilence   silenceGeneratorState = "silence"
		silenceGeneratorStateKeepAlive silenceGeneratorState = "keepAlive"
	)

	const durationMs = 50
	const milisecondsPerSecond = 1000
	ticker := time.NewTicker(durationMs * time.Millisecond)
	defer ticker.Stop()

	chunk := make([]byte, encoding.BytesPerSecond()*durationMs/milisecondsPerSecond)
	for i := range chunk {
		chunk[i] = encoding.SilenceValue()
	}

	var state = silenceGeneratorStateWaiting
	var firstSilenceTime *time.Time
	var lastKeepAliveTime *time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch state {
			case silenceGeneratorStateWaiting:
				if s.sinceLastMessage().Milliseconds() > durationMs {
					state = silenceGeneratorStateSilence
					firstSilenceTime = utils.Ptr(time.Now())
					continue
				}

			case silenceGeneratorStateSilence:
				if s.sinceLastMessage().Milliseconds() < durationMs {
					state = silenceGeneratorStateWaiting
					firstSilenceTime = nil
					continue
				}
				if time.Since(*firstSilenceTime).Milliseconds() >= 1000 {
					state = silenceGeneratorStateKeepAlive
					lastKeepAliveTime = utils.Ptr(time.Now())
					firstSilenceTime = nil
					continue
				}

				if err := s.sendSilence(chunk); err != nil {
					logger.Debug("sending silence audio failed", "error", err)
				}

			case silenceGeneratorStateKeepAlive:
				if s.sinceLastMessage().Milliseconds() < durationMs {
					state = silenceGeneratorStateWaiting
					continue
				}

				if time.Since(*lastKeepAliveTime).Seconds() >= 5 {
					lastKeepAliveTime = utils.Ptr(time.Now())
					s.sendKeepAlive()
				}
			}
		}
	}
}

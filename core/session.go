package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/audio"
	"github.com/koscakluka/ema-relay/core/conversations"
	"github.com/koscakluka/ema-relay/core/events"
	"github.com/koscakluka/ema-relay/core/interruptions"
	"github.com/koscakluka/ema-relay/core/llms"
	"github.com/koscakluka/ema-relay/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// session is the state of one client connection. It lives from the moment
// the transcription backend is reached until either side goes away.
type session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	client        *clientChannel
	transcription speechtotext.Stream

	conversation *conversations.Context
	turnTaking   *interruptions.TurnTaking
	generator    *responseGenerator
	synthesizer  *speechSynthesizer
	workers      *utteranceWorkers

	logger  *slog.Logger
	metrics Metrics

	teardownOnce sync.Once
}

func newSession(ctx context.Context, id string, o *Orchestrator, conn *websocket.Conn) *session {
	ctx, cancel := context.WithCancel(ctx)

	var seed []llms.Message
	if o.systemPrompt != "" {
		seed = append(seed, llms.SystemMessage(o.systemPrompt))
	}

	s := &session{
		id:           id,
		ctx:          ctx,
		cancel:       cancel,
		client:       newClientChannel(conn, o.writeTimeout),
		conversation: conversations.NewContext(seed...),
		turnTaking:   interruptions.NewTurnTaking(),
		logger:       o.logger.With("session_id", id),
		metrics:      o.metrics,
	}
	s.generator = &responseGenerator{
		backend:        o.generator,
		conversation:   s.conversation,
		turnTaking:     s.turnTaking,
		formattingNote: o.formattingNote,
	}
	s.synthesizer = &speechSynthesizer{
		backend: o.synthesizer,
		logger:  s.logger,
		metrics: o.metrics,
	}
	s.workers = newUtteranceWorkers(o.maxConcurrentUtterances, o.utteranceQueueSize, s.respond)

	return s
}

// run drives the session until it is torn down. The first loop to exit tears
// the session down, which in turn stops the other.
func (s *session) run() error {
	stop := context.AfterFunc(s.ctx, s.teardown)
	defer stop()

	s.logger.Info("session started")

	var group errgroup.Group
	group.Go(func() error {
		defer s.teardown()
		return s.readClient()
	})
	group.Go(func() error {
		defer s.teardown()
		return s.readTranscription()
	})
	group.Go(func() error {
		defer s.teardown()
		return s.workers.run(s.ctx)
	})
	err := group.Wait()

	s.logger.Info("session ended", "messages", s.conversation.Len())
	return err
}

func (s *session) teardown() {
	s.teardownOnce.Do(func() {
		s.cancel()

		var errs []error
		if err := s.client.close(); err != nil && !isClientGone(err) {
			errs = append(errs, fmt.Errorf("failed to close client connection: %w", err))
		}
		if s.transcription != nil {
			if err := s.transcription.Close(); err != nil && !errors.Is(err, speechtotext.ErrStreamClosed) {
				errs = append(errs, fmt.Errorf("failed to close transcription stream: %w", err))
			}
		}
		s.conversation.Close()

		if err := errors.Join(errs...); err != nil {
			s.logger.Debug("session teardown incomplete", "error", err)
		}
	})
}

func (s *session) readClient() error {
	for {
		event, err := s.client.read()
		if errors.Is(err, ErrProtocol) {
			s.logger.Debug("ignoring malformed client frame", "error", err)
			continue
		} else if err != nil {
			if s.ctx.Err() != nil || isClientGone(err) {
				return nil
			}
			return fmt.Errorf("%w: client: %w", ErrConnection, err)
		}

		s.handleClientEvent(event)
	}
}

func (s *session) handleClientEvent(event events.ClientEvent) {
	switch e := event.(type) {
	case events.InputAudioAppended:
		if err := s.transcription.AppendAudio(e.Audio); err != nil {
			// The transcription loop notices a dead stream and tears down.
			s.logger.Debug("failed to forward audio", "error", err)
		}
	case events.SpeakerSwitched:
		speaker := interruptions.Speaker(e.Speaker)
		if !speaker.IsKnown() {
			s.logger.Debug("client switched to unknown speaker", "speaker", e.Speaker)
		}
		s.turnTaking.SwitchSpeaker(speaker)
	case events.UnknownClientEvent:
		s.logger.Debug("ignoring unknown client event", "event", e.Kind())
	}
}

func (s *session) readTranscription() error {
	for {
		event, err := s.transcription.Recv(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: transcription: %w", ErrConnection, err)
		}

		s.handleTranscriptionEvent(event)
	}
}

func (s *session) handleTranscriptionEvent(event events.TranscriptionEvent) {
	switch e := event.(type) {
	case events.SpeechStarted:
		state := s.turnTaking.SpeechStarted()
		s.logger.Debug("user started speaking", "state", state.String())
		s.forward(events.NewUserSpeechStarted())
	case events.SpeechStopped:
		s.forward(events.NewUserSpeechStopped())
	case events.TranscriptionCompleted:
		s.dispatch(e.Transcript)
	case events.TranscriptionFailed:
		s.logger.Warn("transcription failed", "item_id", e.ItemID, "message", e.Message)
	case events.BackendError:
		s.logger.Warn("transcription backend reported an error", "code", e.Code, "message", e.Message)
	case events.UnknownTranscriptionEvent:
		s.logger.Debug("ignoring transcription event", "type", e.Type)
	}
}

func (s *session) forward(event events.ServerEvent) {
	if err := s.client.send(event); err != nil {
		s.logger.Debug("failed to forward event", "event", event.Kind(), "error", err)
	}
}

func (s *session) dispatch(transcript string) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		s.logger.Debug("skipping empty transcript")
		return
	}

	if !s.workers.enqueue(utterance{transcript: transcript, receivedAt: time.Now()}) {
		s.logger.Warn("utterance queue full, dropping transcript", "transcript", transcript)
		s.metrics.UtteranceDropped()
		return
	}
	s.metrics.UtteranceDispatched()
}

// respond answers one utterance: generate, synthesize, then stream the audio
// in order. Failures end the utterance, never the session.
func (s *session) respond(ctx context.Context, u utterance) {
	ctx, span := tracer.Start(ctx, "respond to utterance")
	defer span.End()

	reply, err := s.generator.generate(ctx, u.transcript)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			s.logger.Debug("reply abandoned", "error", err)
			return
		}
		s.logger.Error("failed to generate reply", "error", err)
		s.metrics.GenerationFailed()
		return
	}

	chunks := s.synthesizer.synthesize(ctx, reply)
	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	s.streamAudio(ctx, u, chunks)
}

func (s *session) streamAudio(ctx context.Context, u utterance, chunks []audio.Chunk) {
	_, span := tracer.Start(ctx, "stream audio", trace.WithAttributes(attribute.Int("chunks", len(chunks))))
	defer span.End()

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			return
		}
		if err := s.client.send(events.NewOutputAudioAppended(chunk.Base64())); err != nil {
			span.RecordError(err)
			s.logger.Debug("failed to send audio", "error", err)
			return
		}
		if i == 0 {
			s.metrics.ResponseLatency(time.Since(u.receivedAt))
		}
		s.metrics.AudioChunkSent()
	}
}

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/llms"
	"github.com/koscakluka/ema-relay/core/speechtotext"
	"github.com/koscakluka/ema-relay/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxConcurrentUtterances = 1
	defaultUtteranceQueueSize      = 8
	defaultWriteTimeout            = 10 * time.Second
)

// Orchestrator relays one voice conversation per client connection. It is
// configured once and may serve any number of sessions concurrently.
type Orchestrator struct {
	transcriber speechtotext.Transcriber
	generator   llms.Generator
	synthesizer texttospeech.Synthesizer

	systemPrompt   string
	formattingNote string

	maxConcurrentUtterances int
	utteranceQueueSize      int
	writeTimeout            time.Duration
	readLimit               int64

	logger  *slog.Logger
	metrics Metrics
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		systemPrompt:            DefaultSystemPrompt,
		formattingNote:          SpeakerTagFormattingNote,
		maxConcurrentUtterances: defaultMaxConcurrentUtterances,
		utteranceQueueSize:      defaultUtteranceQueueSize,
		writeTimeout:            defaultWriteTimeout,
		logger:                  logger,
		metrics:                 noopMetrics{},
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Start runs a session over conn and blocks until it is torn down. The
// connection is always closed when Start returns.
//
// A session that ends because the client went away returns nil. Failing to
// reach the transcription backend, or losing it mid session, returns an error
// wrapping ErrConnection.
func (o *Orchestrator) Start(ctx context.Context, conn *websocket.Conn) error {
	if err := o.validate(); err != nil {
		conn.Close()
		return err
	}

	id := uuid.NewString()
	ctx, span := tracer.Start(ctx, "session", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	o.metrics.SessionStarted()
	defer o.metrics.SessionEnded()

	if o.readLimit > 0 {
		conn.SetReadLimit(o.readLimit)
	}

	session := newSession(ctx, id, o, conn)

	stream, err := o.transcriber.Connect(ctx)
	if err != nil {
		err = fmt.Errorf("%w: transcription backend: %w", ErrConnection, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		session.logger.Error("failed to connect to transcription backend", "error", err)
		session.teardown()
		return err
	}
	session.transcription = stream

	if err := session.run(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (o *Orchestrator) validate() error {
	var errs []error
	if o.transcriber == nil {
		errs = append(errs, errors.New("no transcriber configured"))
	}
	if o.generator == nil {
		errs = append(errs, errors.New("no generator configured"))
	}
	if o.synthesizer == nil {
		errs = append(errs, errors.New("no synthesizer configured"))
	}
	return errors.Join(errs...)
}

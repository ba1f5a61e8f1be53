package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-relay/core/conversations"
	"github.com/koscakluka/ema-relay/core/interruptions"
	"github.com/koscakluka/ema-relay/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// responseGenerator turns a transcript into the assistant's reply and
// records the exchange in the conversation.
//
// Generations of one session never overlap. The history a reply is built
// from therefore always ends with the previous exchange, and each exchange is
// appended as one unit.
type responseGenerator struct {
	mu sync.Mutex

	backend        llms.Generator
	conversation   *conversations.Context
	turnTaking     *interruptions.TurnTaking
	formattingNote string
}

func (g *responseGenerator) generate(ctx context.Context, transcript string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return "", g.fail(span, err)
	}

	pending := make([]llms.Message, 0, 3)
	interrupted := g.turnTaking.Consume()
	if interrupted {
		pending = append(pending, llms.SystemMessage(InterruptionNote))
	}
	if g.formattingNote != "" {
		pending = append(pending, llms.SystemMessage(g.formattingNote))
	}
	pending = append(pending, llms.UserMessage(transcript))

	history := append(g.conversation.Messages(), pending...)
	span.SetAttributes(
		attribute.Bool("interrupted", interrupted),
		attribute.Int("history.length", len(history)),
	)

	reply, err := g.backend.Generate(ctx, history)
	if err != nil {
		return "", g.fail(span, err)
	}

	reply = llms.EnsureSpeakerTag(reply)
	if reply == "" {
		return "", g.fail(span, llms.ErrEmptyResponse)
	}
	if err := ctx.Err(); err != nil {
		return "", g.fail(span, err)
	}

	if err := g.conversation.Append(append(pending, llms.AssistantMessage(reply))...); err != nil {
		return "", g.fail(span, err)
	}

	return reply, nil
}

func (g *responseGenerator) fail(span trace.Span, err error) error {
	err = fmt.Errorf("%w: %w", ErrGeneration, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

package orchestration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/koscakluka/ema-relay/core/audio"
	"github.com/koscakluka/ema-relay/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type speechSynthesizer struct {
	backend texttospeech.Synthesizer
	logger  *slog.Logger
	metrics Metrics
}

// synthesize never fails the caller. A backend error yields no chunks so the
// reply is simply not voiced.
func (s *speechSynthesizer) synthesize(ctx context.Context, text string) []audio.Chunk {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	chunks, err := s.backend.Synthesize(ctx, text)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSynthesis, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() == nil {
			s.logger.Error("failed to synthesize reply", "error", err)
			s.metrics.SynthesisFailed()
		}
		return nil
	}

	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	return audio.Reindex(chunks)
}

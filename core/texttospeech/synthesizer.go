package texttospeech

import (
	"context"

	"github.com/koscakluka/ema-relay/core/audio"
)

// Synthesizer turns one reply into ordered audio chunks.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]audio.Chunk, error)
}

// SynthesizerFunc adapts an ordinary function to the Synthesizer interface.
type SynthesizerFunc func(ctx context.Context, text string) ([]audio.Chunk, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, text string) ([]audio.Chunk, error) {
	return f(ctx, text)
}

package llms

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned by generators when the backend answered with
// no usable text.
var ErrEmptyResponse = errors.New("empty response from generation backend")

// Generator produces the assistant's reply to an ordered message history.
//
// Implementations must not retain or modify the passed slice.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// GeneratorFunc adapts an ordinary function to the Generator interface.
type GeneratorFunc func(ctx context.Context, messages []Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

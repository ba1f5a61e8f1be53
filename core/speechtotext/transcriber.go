package speechtotext

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-relay/core/events"
)

// ErrStreamClosed is returned by Recv and AppendAudio once the stream has
// been closed locally or by the backend.
var ErrStreamClosed = errors.New("transcription stream closed")

// Transcriber opens transcription streams, one per session.
type Transcriber interface {
	Connect(ctx context.Context) (Stream, error)
}

// Stream is one open connection to a transcription backend.
//
// AppendAudio may be called concurrently with Recv. Recv must only be called
// from one goroutine. Close may be called any number of times from any
// goroutine and unblocks a pending Recv.
type Stream interface {
	// AppendAudio forwards a base64 encoded audio chunk.
	AppendAudio(audio string) error
	// Recv blocks until the next decoded event, ctx is done or the stream
	// ends.
	Recv(ctx context.Context) (events.TranscriptionEvent, error)
	Close() error
}

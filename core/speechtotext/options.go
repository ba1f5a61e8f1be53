package speechtotext

import (
	"time"

	"github.com/koscakluka/ema-relay/core/audio"
)

// DefaultWriteTimeout bounds every write to a transcription backend.
const DefaultWriteTimeout = 10 * time.Second

type TranscriptionOptions struct {
	Model    string
	Language string

	EncodingInfo audio.EncodingInfo

	// WriteTimeout bounds a single write to the backend. A backend that
	// stops reading fails the stream instead of blocking the caller.
	WriteTimeout time.Duration
}

type TranscriptionOption func(*TranscriptionOptions)

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if language != "" {
			o.Language = language
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if encodingInfo.IsZero() {
			return
		}
		o.EncodingInfo = encodingInfo
	}
}

func WithWriteTimeout(timeout time.Duration) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if timeout > 0 {
			o.WriteTimeout = timeout
		}
	}
}

// NewOptions applies opts on top of the defaults shared by all backends.
func NewOptions(opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{
		EncodingInfo: audio.GetDefaultEncodingInfo(),
		WriteTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

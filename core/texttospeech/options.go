package texttospeech

import "github.com/koscakluka/ema-relay/core/audio"

type TextToSpeechOptions struct {
	// ChunkSize caps the size of each produced chunk in bytes. Zero keeps the
	// backend's natural framing.
	ChunkSize int

	EncodingInfo audio.EncodingInfo
}

type TextToSpeechOption func(*TextToSpeechOptions)

func WithChunkSize(size int) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if size >= 0 {
			o.ChunkSize = size
		}
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechOption {
	return func(o *TextToSpeechOptions) {
		if encodingInfo.IsZero() {
			logger.Warn("ignoring incomplete encoding info", "sample_rate", encodingInfo.SampleRate, "format", encodingInfo.Format.Name())
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

func NewOptions(opts ...TextToSpeechOption) TextToSpeechOptions {
	options := TextToSpeechOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

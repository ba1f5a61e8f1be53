package deepgram

import (
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/speechtotext"
)

const (
	DefaultURL      = "wss://api.deepgram.com/v1/listen"
	DefaultModel    = "nova-3"
	DefaultLanguage = "en-US"
)

// TranscriptionClient opens Deepgram listen streams.
type TranscriptionClient struct {
	apiKey  string
	url     string
	dialer  *websocket.Dialer
	options speechtotext.TranscriptionOptions

	// keepSilence enables filling gaps in the client audio with silence and
	// keep-alive messages so Deepgram does not close an idle stream.
	keepSilence bool
}

type ClientOption func(*TranscriptionClient)

func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) {
		if url != "" {
			c.url = url
		}
	}
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *TranscriptionClient) { c.dialer = dialer }
}

func WithTranscriptionOptions(opts ...speechtotext.TranscriptionOption) ClientOption {
	return func(c *TranscriptionClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func WithoutSilenceFill() ClientOption {
	return func(c *TranscriptionClient) { c.keepSilence = false }
}

func NewTranscriptionClient(apiKey string, opts ...ClientOption) *TranscriptionClient {
	client := &TranscriptionClient{
		apiKey: apiKey,
		url:    DefaultURL,
		dialer: websocket.DefaultDialer,
		options: speechtotext.NewOptions(
			speechtotext.WithModel(DefaultModel),
			speechtotext.WithLanguage(DefaultLanguage),
		),
		keepSilence: true,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

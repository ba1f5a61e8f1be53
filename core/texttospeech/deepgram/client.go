package deepgram

import (
	"fmt"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/texttospeech"
)

const DefaultURL = "wss://api.deepgram.com/v1/speak"

// TextToSpeechClient synthesizes replies over Deepgram's speak websocket,
// one connection per reply.
type TextToSpeechClient struct {
	apiKey  string
	url     string
	dialer  *websocket.Dialer
	voice   deepgramVoice
	options texttospeech.TextToSpeechOptions
}

type ClientOption func(*TextToSpeechClient)

func WithURL(url string) ClientOption {
	return func(c *TextToSpeechClient) {
		if url != "" {
			c.url = url
		}
	}
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *TextToSpeechClient) { c.dialer = dialer }
}

func WithTextToSpeechOptions(opts ...texttospeech.TextToSpeechOption) ClientOption {
	return func(c *TextToSpeechClient) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewTextToSpeechClient(apiKey string, voice deepgramVoice, opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		apiKey:  apiKey,
		url:     DefaultURL,
		dialer:  websocket.DefaultDialer,
		voice:   defaultVoice,
		options: texttospeech.NewOptions(),
	}

	if voice != "" {
		if !slices.Contains(GetAvailableVoices(), voice) {
			return nil, fmt.Errorf("invalid voice %q", voice)
		}
		client.voice = voice
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

func (c *TextToSpeechClient) Voice() deepgramVoice {
	return c.voice
}

package groq

import (
	"context"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-relay/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel = "llama-3.3-70b-versatile"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

// Client generates replies with Groq's OpenAI compatible streaming chat
// completions endpoint.
type Client struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithURL overrides the chat completions endpoint.
func WithURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{apiKey: apiKey, model: DefaultModel, url: DefaultURL}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}
	return c
}

// Generate streams the reply and returns it once the stream is complete.
func (c *Client) Generate(ctx context.Context, messages []llms.Message) (string, error) {
	converted, err := toMessages(messages)
	if err != nil {
		return "", err
	}

	stream := &Stream{
		apiKey:     c.apiKey,
		model:      c.model,
		url:        c.url,
		httpClient: c.httpClient,
		messages:   converted,
	}

	var response strings.Builder
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			return "", err
		}
		response.WriteString(chunk.Content())
	}

	reply := strings.TrimSpace(response.String())
	if reply == "" {
		return "", llms.ErrEmptyResponse
	}
	return reply, nil
}

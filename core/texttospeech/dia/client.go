// Package dia synthesizes speech with a Dia model served over HTTP.
//
// The server accepts POST {"text": "..."} and answers with a WAV file. Dia
// renders [S1]/[S2] speaker tags as separate voices and non-verbal cues such
// as (laughs) as sounds, so text is sent unchanged apart from making sure it
// opens with a speaker tag.
package dia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-relay/core/audio"
	"github.com/koscakluka/ema-relay/core/llms"
	"github.com/koscakluka/ema-relay/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultURL = "http://localhost:8001/generate"

	maxErrorBody = 4 << 10
)

type Client struct {
	url        string
	httpClient *http.Client
	options    texttospeech.TextToSpeechOptions
}

type ClientOption func(*Client)

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

func WithTextToSpeechOptions(opts ...texttospeech.TextToSpeechOption) ClientOption {
	return func(c *Client) {
		for _, opt := range opts {
			opt(&c.options)
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{url: DefaultURL, options: texttospeech.NewOptions()}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return c
}

type generateRequest struct {
	Text string `json:"text"`
}

func (c *Client) Synthesize(ctx context.Context, text string) ([]audio.Chunk, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	text = llms.EnsureSpeakerTag(text)
	if text == "" {
		return nil, nil
	}
	span.SetAttributes(attribute.Int("request.text_length", len(text)))

	body, err := json.Marshal(generateRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(errorBody)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "non-OK status")
		return nil, err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	if !audio.IsWAV(payload) {
		logger.Warn("dia returned audio that is not wav", "content_type", resp.Header.Get("Content-Type"))
	}

	chunks, err := audio.SplitWAV(payload, c.options.ChunkSize)
	if err != nil {
		err = fmt.Errorf("error chunking audio: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chunking failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("response.chunks", len(chunks)))
	return chunks, nil
}

package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-relay/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// Client generates replies with the Gemini API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client

	client *genai.Client
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	c := &Client{apiKey: apiKey, model: DefaultModel}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	config := &genai.ClientConfig{
		APIKey:     c.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	c.client = client

	return c, nil
}

func (c *Client) Generate(ctx context.Context, messages []llms.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.messages", len(messages)),
	)

	systemInstruction, contents := toContents(messages)
	if len(contents) == 0 {
		span.SetStatus(codes.Error, "no contents")
		return "", fmt.Errorf("no user or model messages to send")
	}

	var config *genai.GenerateContentConfig
	if systemInstruction != nil {
		config = &genai.GenerateContentConfig{SystemInstruction: systemInstruction}
	}

	response, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		err = fmt.Errorf("error generating content: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate content failed")
		return "", err
	}

	if response.UsageMetadata != nil {
		span.SetAttributes(
			attribute.Int("usage.prompt", int(response.UsageMetadata.PromptTokenCount)),
			attribute.Int("usage.completion", int(response.UsageMetadata.CandidatesTokenCount)),
			attribute.Int("usage.total", int(response.UsageMetadata.TotalTokenCount)),
		)
	}

	text := candidateText(response)
	if text == "" {
		if response != nil && len(response.Candidates) > 0 {
			logger.Warn("gemini returned no text", "finish_reason", string(response.Candidates[0].FinishReason))
		}
		span.SetStatus(codes.Error, "empty response")
		return "", llms.ErrEmptyResponse
	}
	return text, nil
}

func candidateText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}

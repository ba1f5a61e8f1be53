package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-relay/core/llms"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultModel = "gpt-4o-mini"

// Client generates replies with the OpenAI chat completions API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	maxRetries int

	client openai.Client
}

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI compatible endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithMaxRetries(retries int) ClientOption {
	return func(c *Client) { c.maxRetries = retries }
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      DefaultModel,
		maxRetries: 2,
	}
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

	requestOptions := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(c.maxRetries),
	}
	if c.baseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(c.baseURL))
	}
	c.client = openai.NewClient(requestOptions...)

	return c
}

func (c *Client) Generate(ctx context.Context, messages []llms.Message) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.messages", len(messages)),
	)

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		err = fmt.Errorf("error requesting chat completion: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", err
	}

	if completion.Usage.TotalTokens > 0 {
		span.SetAttributes(
			attribute.Int64("usage.prompt", completion.Usage.PromptTokens),
			attribute.Int64("usage.completion", completion.Usage.CompletionTokens),
			attribute.Int64("usage.total", completion.Usage.TotalTokens),
		)
	}

	if len(completion.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return "", llms.ErrEmptyResponse
	}

	choice := completion.Choices[0]
	span.SetAttributes(attribute.String("response.finish_reason", choice.FinishReason))
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		if choice.Message.Refusal != "" {
			logger.Warn("model refused to answer", "refusal", choice.Message.Refusal)
		}
		span.SetStatus(codes.Error, "empty response")
		return "", llms.ErrEmptyResponse
	}

	return content, nil
}

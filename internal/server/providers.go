package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	orchestration "github.com/koscakluka/ema-relay/core"
	"github.com/koscakluka/ema-relay/core/audio"
	"github.com/koscakluka/ema-relay/core/llms"
	"github.com/koscakluka/ema-relay/core/llms/gemini"
	"github.com/koscakluka/ema-relay/core/llms/groq"
	"github.com/koscakluka/ema-relay/core/llms/openai"
	"github.com/koscakluka/ema-relay/core/speechtotext"
	deepgramstt "github.com/koscakluka/ema-relay/core/speechtotext/deepgram"
	openaistt "github.com/koscakluka/ema-relay/core/speechtotext/openai"
	"github.com/koscakluka/ema-relay/core/texttospeech"
	deepgramtts "github.com/koscakluka/ema-relay/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-relay/core/texttospeech/dia"
	"github.com/koscakluka/ema-relay/internal/config"
	"github.com/koscakluka/ema-relay/internal/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewOrchestrator builds the providers named in cfg and wires them into an
// orchestrator.
func NewOrchestrator(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*orchestration.Orchestrator, error) {
	// Backend writes share the client write bound so a stalled backend
	// cannot hold the client read loop.
	transcriber, err := NewTranscriber(cfg.Transcription, speechtotext.WithWriteTimeout(cfg.Session.WriteTimeout))
	if err != nil {
		return nil, err
	}
	generator, err := NewGenerator(ctx, cfg.Generation)
	if err != nil {
		return nil, err
	}
	synthesizer, err := NewSynthesizer(cfg.Synthesis)
	if err != nil {
		return nil, err
	}

	opts := []orchestration.OrchestratorOption{
		orchestration.WithTranscriber(transcriber),
		orchestration.WithGenerator(generator),
		orchestration.WithSynthesizer(synthesizer),
		orchestration.WithMaxConcurrentUtterances(cfg.Session.MaxConcurrentUtterances),
		orchestration.WithUtteranceQueueSize(cfg.Session.UtteranceQueueSize),
		orchestration.WithWriteTimeout(cfg.Session.WriteTimeout),
		orchestration.WithReadLimit(cfg.Session.ReadLimit),
		orchestration.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, orchestration.WithMetrics(m))
	}
	if cfg.Generation.SystemPrompt != "" {
		opts = append(opts, orchestration.WithSystemPrompt(cfg.Generation.SystemPrompt))
	}

	return orchestration.NewOrchestrator(opts...), nil
}

// NewTranscriber builds the configured transcription backend. extra options
// are applied after the ones derived from cfg.
func NewTranscriber(cfg config.TranscriptionConfig, extra ...speechtotext.TranscriptionOption) (speechtotext.Transcriber, error) {
	encoding, err := encodingInfo(cfg.SampleRate, cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	options := []speechtotext.TranscriptionOption{
		speechtotext.WithModel(cfg.Model),
		speechtotext.WithLanguage(cfg.Language),
		speechtotext.WithEncodingInfo(encoding),
	}
	options = append(options, extra...)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openaistt.NewTranscriptionClient(cfg.APIKey,
			openaistt.WithURL(cfg.URL),
			openaistt.WithTranscriptionOptions(options...),
		), nil
	case config.ProviderDeepgram:
		return deepgramstt.NewTranscriptionClient(cfg.APIKey,
			deepgramstt.WithURL(cfg.URL),
			deepgramstt.WithTranscriptionOptions(options...),
		), nil
	}
	return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
}

func NewGenerator(ctx context.Context, cfg config.GenerationConfig) (llms.Generator, error) {
	httpClient := newHTTPClient(cfg.Timeout)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.APIKey,
			openai.WithModel(cfg.Model),
			openai.WithBaseURL(cfg.URL),
			openai.WithHTTPClient(httpClient),
		), nil
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, cfg.APIKey,
			gemini.WithModel(cfg.Model),
			gemini.WithBaseURL(cfg.URL),
			gemini.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("generation: %w", err)
		}
		return client, nil
	case config.ProviderGroq:
		return groq.NewClient(cfg.APIKey,
			groq.WithModel(cfg.Model),
			groq.WithURL(cfg.URL),
			groq.WithHTTPClient(httpClient),
		), nil
	}
	return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
}

func NewSynthesizer(cfg config.SynthesisConfig) (texttospeech.Synthesizer, error) {
	encoding, err := encodingInfo(cfg.SampleRate, cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	options := []texttospeech.TextToSpeechOption{
		texttospeech.WithChunkSize(cfg.ChunkSize),
		texttospeech.WithEncodingInfo(encoding),
	}

	switch cfg.Provider {
	case config.ProviderDia:
		return dia.NewClient(
			dia.WithURL(cfg.URL),
			dia.WithHTTPClient(newHTTPClient(cfg.Timeout)),
			dia.WithTextToSpeechOptions(options...),
		), nil
	case config.ProviderDeepgram:
		voice, ok := deepgramtts.ParseVoice(cfg.Voice)
		if cfg.Voice != "" && !ok {
			return nil, fmt.Errorf("synthesis: unknown deepgram voice %q", cfg.Voice)
		}
		client, err := deepgramtts.NewTextToSpeechClient(cfg.APIKey, voice,
			deepgramtts.WithURL(cfg.URL),
			deepgramtts.WithTextToSpeechOptions(options...),
		)
		if err != nil {
			return nil, fmt.Errorf("synthesis: %w", err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown synthesis provider %q", cfg.Provider)
}

func encodingInfo(sampleRate int, encoding string) (audio.EncodingInfo, error) {
	format, ok := audio.ParseFormat(encoding)
	if !ok {
		return audio.EncodingInfo{}, fmt.Errorf("unknown encoding %q", encoding)
	}
	return audio.EncodingInfo{SampleRate: sampleRate, Format: format}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		),
	}
}

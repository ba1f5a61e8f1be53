package orchestration

import (
	"log/slog"
	"time"

	"github.com/koscakluka/ema-relay/core/llms"
	"github.com/koscakluka/ema-relay/core/speechtotext"
	"github.com/koscakluka/ema-relay/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

func WithTranscriber(transcriber speechtotext.Transcriber) OrchestratorOption {
	return func(o *Orchestrator) { o.transcriber = transcriber }
}

func WithGenerator(generator llms.Generator) OrchestratorOption {
	return func(o *Orchestrator) { o.generator = generator }
}

func WithSynthesizer(synthesizer texttospeech.Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesizer = synthesizer }
}

// WithSystemPrompt replaces DefaultSystemPrompt. An empty prompt seeds the
// conversation with nothing.
func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithFormattingNote replaces SpeakerTagFormattingNote, which is sent before
// every user message. An empty note disables it.
func WithFormattingNote(note string) OrchestratorOption {
	return func(o *Orchestrator) { o.formattingNote = note }
}

// WithMaxConcurrentUtterances sets how many utterances of one session may be
// answered at the same time. With more than one, audio of different replies
// can interleave at the client.
func WithMaxConcurrentUtterances(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrentUtterances = n
		}
	}
}

// WithUtteranceQueueSize sets how many utterances may wait for a worker
// before new ones are dropped.
func WithUtteranceQueueSize(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.utteranceQueueSize = n
		}
	}
}

// WithWriteTimeout bounds every write to the client. Non-positive values
// keep the default.
func WithWriteTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.writeTimeout = timeout
		}
	}
}

// WithReadLimit caps the size of a single client frame in bytes.
func WithReadLimit(limit int64) OrchestratorOption {
	return func(o *Orchestrator) { o.readLimit = limit }
}

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(metrics Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

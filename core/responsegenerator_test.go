package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/koscakluka/ema-relay/core/conversations"
	"github.com/koscakluka/ema-relay/core/interruptions"
	"github.com/koscakluka/ema-relay/core/llms"
)

func newTestResponseGenerator(backend llms.Generator) *responseGenerator {
	return &responseGenerator{
		backend:        backend,
		conversation:   conversations.NewContext(llms.SystemMessage("system")),
		turnTaking:     interruptions.NewTurnTaking(),
		formattingNote: "format",
	}
}

func TestResponseGeneratorFailuresLeaveConversationUntouched(t *testing.T) {
	testCases := []struct {
		name    string
		reply   string
		err     error
		wantErr error
	}{
		{name: "backend error", err: errors.New("boom"), wantErr: ErrGeneration},
		{name: "empty reply", reply: "", wantErr: llms.ErrEmptyResponse},
		{name: "whitespace reply", reply: " \t ", wantErr: llms.ErrEmptyResponse},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestResponseGenerator(llms.GeneratorFunc(func(context.Context, []llms.Message) (string, error) {
				return tc.reply, tc.err
			}))

			_, err := g.generate(context.Background(), "hello")
			if !errors.Is(err, tc.wantErr) || !errors.Is(err, ErrGeneration) {
				t.Fatalf("expected %v wrapped in ErrGeneration, got %v", tc.wantErr, err)
			}
			if got := g.conversation.Len(); got != 1 {
				t.Fatalf("expected only the seed message, got %d messages", got)
			}
		})
	}
}

func TestResponseGeneratorLosesInterruptionOnFailure(t *testing.T) {
	calls := 0
	g := newTestResponseGenerator(llms.GeneratorFunc(func(_ context.Context, messages []llms.Message) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("boom")
		}
		if hasMessage(messages, llms.RoleSystem, InterruptionNote) {
			t.Errorf("expected interruption to be consumed by the failed attempt")
		}
		return "fine", nil
	}))

	g.turnTaking.SwitchSpeaker(interruptions.SpeakerAssistant)
	g.turnTaking.SpeechStarted()

	if _, err := g.generate(context.Background(), "one"); err == nil {
		t.Fatalf("expected first generation to fail")
	}
	if _, err := g.generate(context.Background(), "two"); err != nil {
		t.Fatalf("expected second generation to succeed, got %v", err)
	}
}

func TestResponseGeneratorAppendsExchangeAtomically(t *testing.T) {
	g := newTestResponseGenerator(llms.GeneratorFunc(func(context.Context, []llms.Message) (string, error) {
		return "  sure  ", nil
	}))

	reply, err := g.generate(context.Background(), "can you help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "[S1] sure" {
		t.Fatalf("expected tagged reply, got %q", reply)
	}

	expected := []llms.Message{
		llms.SystemMessage("system"),
		llms.SystemMessage("format"),
		llms.UserMessage("can you help"),
		llms.AssistantMessage("[S1] sure"),
	}
	got := g.conversation.Messages()
	if len(got) != len(expected) {
		t.Fatalf("expected %d messages, got %+v", len(expected), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("message %d: expected %+v, got %+v", i, expected[i], got[i])
		}
	}
}

func TestResponseGeneratorRejectsCancelledContext(t *testing.T) {
	called := false
	g := newTestResponseGenerator(llms.GeneratorFunc(func(context.Context, []llms.Message) (string, error) {
		called = true
		return "reply", nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.generate(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatalf("expected backend not to be called")
	}
}

func TestResponseGeneratorFailsOnClosedConversation(t *testing.T) {
	g := newTestResponseGenerator(llms.GeneratorFunc(func(context.Context, []llms.Message) (string, error) {
		return "reply", nil
	}))
	g.conversation.Close()

	if _, err := g.generate(context.Background(), "hello"); !errors.Is(err, conversations.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

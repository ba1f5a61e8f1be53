package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	orchestration "github.com/koscakluka/ema-relay/core"
	"github.com/koscakluka/ema-relay/internal/config"
)

// newRealtimeBackend answers every transcription socket with one completed
// transcript.
func newRealtimeBackend(t *testing.T, transcript string) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		completed, _ := json.Marshal(map[string]string{
			"type":       "conversation.item.input_audio_transcription.completed",
			"item_id":    "item_1",
			"transcript": transcript,
		})
		if err := conn.WriteMessage(websocket.TextMessage, completed); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

type chatRequest struct {
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

// newChatBackend captures chat completion requests and rejects them, so no
// synthesis follows.
func newChatBackend(t *testing.T) (string, <-chan chatRequest) {
	t.Helper()

	requests := make(chan chatRequest, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var request chatRequest
		if err := json.Unmarshal(body, &request); err == nil {
			requests <- request
		}
		http.Error(w, `{"error":{"message":"rejected"}}`, http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)
	return server.URL, requests
}

func TestFormattingNoteIsSentForEverySynthesizer(t *testing.T) {
	testCases := []struct {
		name     string
		provider string
	}{
		{name: "dia", provider: config.ProviderDia},
		{name: "deepgram", provider: config.ProviderDeepgram},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chatURL, requests := newChatBackend(t)

			cfg := config.Default()
			cfg.Transcription.APIKey = "key"
			cfg.Transcription.URL = newRealtimeBackend(t, "hello there")
			cfg.Generation.APIKey = "key"
			cfg.Generation.URL = chatURL + "/"
			cfg.Synthesis.Provider = tc.provider
			cfg.Synthesis.APIKey = "key"

			orch, err := NewOrchestrator(context.Background(), &cfg, discardLogger, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			upgrader := websocket.Upgrader{}
			relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				conn, err := upgrader.Upgrade(w, r, nil)
				if err != nil {
					return
				}
				_ = orch.Start(context.Background(), conn)
			}))
			t.Cleanup(relay.Close)

			conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(relay.URL, "http"), nil)
			if err != nil {
				t.Fatalf("failed to dial relay: %v", err)
			}
			t.Cleanup(func() { conn.Close() })

			var request chatRequest
			select {
			case request = <-requests:
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out waiting for the chat request")
			}

			found := false
			for _, message := range request.Messages {
				var content string
				if json.Unmarshal(message.Content, &content) == nil &&
					message.Role == "system" && content == orchestration.SpeakerTagFormattingNote {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected the formatting note in %d messages", len(request.Messages))
			}
		})
	}
}

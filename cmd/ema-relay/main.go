// Package main provides the ema-relay voice chat server.
//
// Usage:
//
//	ema-relay serve [--config relay.yaml] [--addr :8000]
//	ema-relay version
//
// API keys are read from OPENAI_API_KEY, DEEPGRAM_API_KEY, GEMINI_API_KEY
// and GROQ_API_KEY depending on the configured providers.
package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/ema-relay/cmd/ema-relay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

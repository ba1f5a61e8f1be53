// Package main provides a terminal voice client for ema-relay.
//
// It streams the default microphone to the relay and plays the synthesized
// replies through the default speaker.
//
// Usage:
//
//	ema-relay-client [--url ws://localhost:8000/ai-voice-chat] [--sample-rate 24000]
package main

import (
	"fmt"
	"os"

	"github.com/koscakluka/ema-relay/cmd/ema-relay-client/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

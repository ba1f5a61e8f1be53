package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-relay/core/audio/miniaudio"
	"github.com/spf13/cobra"
)

var (
	relayURL     string
	captureRate  int
	playbackRate int
	logFile      string
)

var rootCmd = &cobra.Command{
	Use:   "ema-relay-client",
	Short: "Talk to an ema-relay server from the terminal",
	Long: `Talk to an ema-relay server from the terminal.

The client captures 16-bit mono PCM from the default microphone, streams it
to the relay and plays back the synthesized replies. It reports who is
speaking so the relay can acknowledge interruptions.

Press q or Ctrl+C to quit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runClient,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().StringVar(&relayURL, "url", "ws://localhost:8000/ai-voice-chat", "relay websocket URL")
	rootCmd.Flags().IntVar(&captureRate, "sample-rate", 24000, "microphone sample rate, must match the transcription backend")
	rootCmd.Flags().IntVar(&playbackRate, "playback-rate", 24000, "speaker sample rate, must match the synthesized audio")
	rootCmd.Flags().StringVar(&logFile, "log", "", "write debug logs to this file")
}

func runClient(cmd *cobra.Command, _ []string) error {
	logger, closeLog, err := newFileLogger(logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", relayURL, err)
	}
	defer conn.Close()

	device, err := miniaudio.NewClient(
		miniaudio.WithCaptureSampleRate(captureRate),
		miniaudio.WithPlaybackSampleRate(playbackRate),
	)
	if err != nil {
		return err
	}
	defer device.Close()

	relay := newRelayClient(conn, device, playbackRate, logger)
	device.OnPlayback(
		func() { relay.reportSpeaker(speakerAI) },
		func() { relay.reportSpeaker(speakerNone) },
	)

	if err := device.StartCapture(relay.sendAudio); err != nil {
		return fmt.Errorf("failed to start microphone: %w", err)
	}
	defer device.StopCapture()

	go relay.readLoop(ctx)

	model := newTUIModel(relayURL, relay.Events())
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func newFileLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = file.Close() }, nil
}

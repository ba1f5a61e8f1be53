package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/koscakluka/ema-relay/internal/config"
	"github.com/koscakluka/ema-relay/internal/metrics"
	"github.com/koscakluka/ema-relay/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Long: `Run the relay server until interrupted.

Examples:
  # Defaults: OpenAI transcription and generation, Dia synthesis
  OPENAI_API_KEY=... ema-relay serve

  # Deepgram for both speech directions
  ema-relay serve --config relay.yaml --addr :9000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address, overrides the config file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		"version", version,
		"transcription", cfg.Transcription.Provider,
		"generation", cfg.Generation.Provider,
		"synthesis", cfg.Synthesis.Provider,
	)

	appMetrics := metrics.NewMetrics()
	orchestrator, err := server.NewOrchestrator(ctx, cfg, logger, appMetrics)
	if err != nil {
		return fmt.Errorf("failed to build providers: %w", err)
	}

	srv := server.New(cfg.Server, orchestrator,
		server.WithLogger(logger),
		server.WithMetrics(appMetrics),
	)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("stopped")
	return nil
}

// newLogger builds the process logger from the logging config. The returned
// func closes the log file, if one was opened.
func newLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	output, closeOutput := os.Stderr, func() {}
	switch cfg.Output {
	case "stderr", "":
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		output, closeOutput = file, func() { _ = file.Close() }
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler), closeOutput, nil
}

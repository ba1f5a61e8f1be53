package commands

import (
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X ...commands.version=...".
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ema-relay",
	Short: "Real-time voice chat relay",
	Long: `ema-relay relays a voice conversation between a websocket client and
speech-to-text, language model and text-to-speech backends.

Clients stream microphone audio to the chat route and receive synthesized
replies as base64 audio chunks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables apply on top")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

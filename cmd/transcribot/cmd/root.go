package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"transcribot/cmd/transcribot/cmd/quota"
	"transcribot/cmd/transcribot/cmd/serve"
	"transcribot/cmd/transcribot/cmd/settings"
	"transcribot/cmd/transcribot/cmd/transcribe"
	"transcribot/cmd/transcribot/cmd/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "transcribot",
	Short: "Transcribe voice messages within a per-user time quota",
	Long: `Transcribe voice messages within a per-user time quota.
- Media is split into chunks of at most 10 minutes and sent to Whisper
- Transcription time is reserved up front and refunded on failure
- Run "serve" for the HTTP API or "transcribe" for a single local file`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serve.Cmd)
	rootCmd.AddCommand(transcribe.Cmd)
	rootCmd.AddCommand(quota.Cmd)
	rootCmd.AddCommand(version.Cmd)

	rootCmd.PersistentFlags().StringVarP(&settings.ConfigPath, "config", "c", "", "YAML settings file (environment variables override it)")
	rootCmd.PersistentFlags().BoolVarP(&settings.Verbose, "verbose", "V", false, "debug logging")
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/uiprobe/internal/config"
	seclog "github.com/nao1215/uiprobe/internal/log"
)

// NewRootCmd creates the root command for uiprobe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uiprobe",
		Short: "Browser-driven UI verification for the transcription app",
		Long: `uiprobe verifies the transcription web application end to end.

It opens the app in a headless browser, attaches an audio file to the upload
input, starts processing, waits for "Transcription Complete" and captures
full-page screenshots of the results and of the raw tab.

With no flags and no configuration file, uiprobe verifies
http://localhost:5173 with jules-scratch/verification/silent.mp3 and writes
its screenshots to jules-scratch/verification.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", config.DefaultLogFormat,
		"Log format written to stderr (text or json)")

	// Add subcommands
	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogFormatFlag retrieves the log format from the command or its parent.
func getLogFormatFlag(cmd *cobra.Command) string {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		format, err = cmd.Root().PersistentFlags().GetString("log-format")
		if err != nil {
			return config.DefaultLogFormat
		}
	}
	return format
}

// setupLogger creates a redacting logger that writes to w.
// Target URLs may carry credentials, so every logger goes through the
// secure handler.
func setupLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	if format == config.LogFormatJSON {
		return seclog.NewSecureJSONLogger(w, verbose)
	}
	return seclog.NewSecureLogger(w, verbose)
}

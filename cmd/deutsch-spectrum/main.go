package main

import (
	"context"
	"os"
	rtdebug "runtime/debug"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/Amr-Mustafa/deutsch-spectrum/cmd/deutsch-spectrum/analyze"
	"github.com/Amr-Mustafa/deutsch-spectrum/cmd/deutsch-spectrum/highlight"
	"github.com/Amr-Mustafa/deutsch-spectrum/cmd/deutsch-spectrum/serve"
	"github.com/Amr-Mustafa/deutsch-spectrum/pkg/debug"
)

func main() {
	if err := run(); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func run() error {
	var (
		logLevel string
		logJSON  bool
	)

	rootCmd := &cobra.Command{
		Use:   "deutsch-spectrum",
		Short: "Token highlighter for German grammar: separable verbs, reflexives and their friends",
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log one JSON object per line instead of the console format")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		logger := debug.NewLogger(os.Stderr, logLevel, !logJSON)
		cmd.SetContext(logger.WithContext(cmd.Context()))
	}

	info, ok := rtdebug.ReadBuildInfo()
	if !ok {
		rootCmd.Version = "unknown"
	} else {
		rootCmd.Version = info.Main.Version
	}

	rootCmd.AddCommand(serve.NewServeCommand())
	rootCmd.AddCommand(highlight.NewHighlightCommand())
	rootCmd.AddCommand(analyze.NewAnalyzeCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return errors.Errorf("failed to execute command: %w", err)
	}

	return nil
}

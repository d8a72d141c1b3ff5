// Package cli implements feedbackctl, an offline front end to the engine and
// the chat-log parser.
package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	env    string
	pretty bool
}

// NewRootCmd builds the command tree. Output goes to the command's out
// writer so callers can capture it.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "feedbackctl",
		Short: "Analyze feedback text and chat logs from the command line",
		Long: `feedbackctl runs the sentiment and political spectrum engine locally.

It reads the same environment as the services (config/envs/.env.<env>),
so the neural backend, blend weights and category table match production.
Use --backend none for a lexical-only run without loading a model.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			config.LoadEnv(opts.env)
			logging.InitLogger()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.env, "env", envOr("APP_ENV", "dev"), "environment file to load")
	cmd.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "indent JSON output")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newParseCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				cmd.Println("feedbackctl " + version)
			},
		},
	)
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func writeJSON(w io.Writer, pretty bool, v any) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		raw, err := io.ReadAll(stdin)
		return string(raw), err
	}
	raw, err := os.ReadFile(path)
	return string(raw), err
}

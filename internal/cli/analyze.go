package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/engine"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	backend    string
	categories string
	file       string
	timeout    time.Duration
}

type analyzeOutput struct {
	Text       string          `json:"text"`
	ModelState string          `json:"modelState"`
	Analysis   models.Analysis `json:"analysis"`
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Run sentiment and spectrum analysis on text",
		Long: `Analyze prints the sentiment and political spectrum for the given text.

Example:
  feedbackctl analyze "The new bus routes are great"
  feedbackctl analyze --file notes.txt --backend none`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "override NEURAL_BACKEND (onnx, remote, openai, none)")
	cmd.Flags().StringVar(&opts.categories, "categories", "", "override SPECTRUM_CATEGORIES_FILE")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read text from a file, - for stdin")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall timeout including model load")
	return cmd
}

func runAnalyze(cmd *cobra.Command, root *rootOptions, opts *analyzeOptions, args []string) error {
	text := strings.Join(args, " ")
	if opts.file != "" {
		raw, err := readInput(opts.file, cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		text = raw
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("nothing to analyze: pass text or --file")
	}

	cfg := config.Load()
	if opts.backend != "" {
		cfg.Neural.Backend = strings.ToLower(opts.backend)
	}
	if opts.categories != "" {
		cfg.Engine.CategoriesFile = opts.categories
	}
	// one-shot runs gain nothing from a shared cache
	cfg.Valkey.Address = ""

	eng, err := engine.Build(cfg, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	eng.EnsureModelsReady(ctx)
	analysis := eng.Analyze(ctx, text)

	return writeJSON(cmd.OutOrStdout(), root.pretty, analyzeOutput{
		Text:       text,
		ModelState: eng.ModelState().String(),
		Analysis:   analysis,
	})
}

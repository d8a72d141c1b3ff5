package cli

import (
	"fmt"

	"github.com/spacesedan/feedbackflow/internal/chatlog"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spf13/cobra"
)

type parseOutput struct {
	Format   chatlog.Format       `json:"format"`
	Count    int                  `json:"count"`
	Messages []models.ChatMessage `json:"messages"`
}

func newParseCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a chat log export into messages",
		Long: `Parse detects the format of a chat log (JSON array, CSV or plain text)
and prints the messages that an upload would ingest. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			messages, err := chatlog.Parse(content)
			if err != nil {
				return err
			}
			if messages == nil {
				messages = []models.ChatMessage{}
			}

			return writeJSON(cmd.OutOrStdout(), root.pretty, parseOutput{
				Format:   chatlog.DetectFormat(content),
				Count:    len(messages),
				Messages: messages,
			})
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	draftFigures string
	draftTimeout time.Duration
)

// draftCmd represents the draft command
var draftCmd = &cobra.Command{
	Use:   "draft <figure-id>",
	Short: "Draft complete alt-text options for a figure",
	Long: `Draft writes one complete alt-text option per configured model
(session.draft_models) and stores each as a generated description. Drafts
never modify the author's description.

Example:
  altwrite draft 12
  altwrite draft 12 --llm-provider anthropic --llm-model claude-3-5-haiku-20241022`,
	Args: cobra.ExactArgs(1),
	RunE: runDraft,
}

func init() {
	rootCmd.AddCommand(draftCmd)
	draftCmd.Flags().StringVar(&draftFigures, "figures", "", "JSON file of figures to seed the memory store")
	draftCmd.Flags().DurationVar(&draftTimeout, "timeout", 5*time.Minute, "overall timeout")
}

func runDraft(cmd *cobra.Command, args []string) error {
	var figureID int64
	if _, err := fmt.Sscan(args[0], &figureID); err != nil || figureID <= 0 {
		return fmt.Errorf("invalid figure id: %q", args[0])
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), draftTimeout)
	defer cancel()

	a, err := newApp(cmd, draftFigures)
	if err != nil {
		return err
	}

	drafts, err := a.drafter().DraftFigure(ctx, figureID)
	if err != nil {
		return fmt.Errorf("draft failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, g := range drafts {
		_, _ = fmt.Fprintf(out, "[%s]\n%s\n\n", g.Model, g.Description)
	}
	return nil
}

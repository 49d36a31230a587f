package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	completeFlags  sessionFlags
	completeText   string
	completeAccept bool
)

// completeCmd represents the complete command
var completeCmd = &cobra.Command{
	Use:   "complete",
	Short: "Suggest the next sentence of a figure's alt-text",
	Long: `Complete loads the figure's saved description, appends --text at the
cursor and asks the model for the next sentence. The suggestion is inserted as
a provisional span and printed. With --accept it becomes permanent text and the
description is saved.

Example:
  altwrite complete --figure 12 --user 3
  altwrite complete --figure 12 --user 3 --text "A line chart of rainfall" --accept`,
	Args: cobra.NoArgs,
	RunE: runComplete,
}

func init() {
	rootCmd.AddCommand(completeCmd)
	completeFlags.register(completeCmd)
	completeCmd.Flags().StringVar(&completeText, "text", "", "text to type before requesting a completion")
	completeCmd.Flags().BoolVar(&completeAccept, "accept", false, "accept the suggestion and save the description")
}

func runComplete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), completeFlags.timeout)
	defer cancel()

	s, closeSession, err := completeFlags.mount(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeSession()

	if completeText != "" {
		if err := s.Editor.Type(completeText); err != nil {
			return fmt.Errorf("type text: %w", err)
		}
	}

	id, err := s.Complete(ctx)
	if err != nil {
		return fmt.Errorf("completion failed: %w", err)
	}
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, provisionalText(s, id))

	if !completeAccept {
		return nil
	}
	if _, err := acceptSpan(s, id); err != nil {
		return fmt.Errorf("accept suggestion: %w", err)
	}
	d, err := s.Submit(ctx)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	_, _ = fmt.Fprintf(out, "\nSaved description %d:\n%s\n", d.ID, d.CurrentString)
	return nil
}

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	questionsFlags sessionFlags
	questionsCount int
)

// questionsCmd represents the questions command
var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Ask clarifying questions about a figure's alt-text",
	Long: `Questions asks the model what the current description still lacks. Each
question comes with suggested answers drawn from the figure's metadata. The
figure must already have a saved description.

Example:
  altwrite questions --figure 12 --user 3
  altwrite questions --figure 12 --user 3 --count 5`,
	Args: cobra.NoArgs,
	RunE: runQuestions,
}

func init() {
	rootCmd.AddCommand(questionsCmd)
	questionsFlags.register(questionsCmd)
	questionsCmd.Flags().IntVarP(&questionsCount, "count", "n", 0, "number of questions (default: settings question_count)")
}

func runQuestions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), questionsFlags.timeout)
	defer cancel()

	s, closeSession, err := questionsFlags.mount(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeSession()

	if _, err := s.Ask(ctx, questionsCount); err != nil {
		return fmt.Errorf("questions failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for i, sg := range s.Questions.Suggestions() {
		qa, _ := sg.QA()
		_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, qa.Question)
		if len(qa.SuggestedAnswers) > 0 {
			_, _ = fmt.Fprintf(out, "   suggested: %s\n", strings.Join(qa.SuggestedAnswers, " | "))
		}
	}
	return nil
}

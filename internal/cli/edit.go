package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/altwrite/internal/assist"
	"github.com/ppiankov/altwrite/internal/model"
)

var editFlags sessionFlags

// editCmd represents the edit command
var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit a figure's alt-text interactively",
	Long: `Edit mounts an editing session and reads commands from stdin, one per line.
A line that does not start with ':' is typed at the cursor.

Commands:
  :complete            suggest the next sentence (provisional)
  :accept [id]         accept a provisional suggestion
  :reject [id]         reject a provisional suggestion
  :ask [n]             ask n clarifying questions
  :drafts              draft complete options with every configured model
  :paste <text>        paste text at the cursor
  :delete [n]          delete n characters before the cursor
  :newline             start a new paragraph
  :model <name>        set the generation model
  :prompt <text>       set extra instructions for the model
  :toggle <field>      toggle caption, ocr_text, mentions or data_table
  :count <n>           set the default number of questions
  :condition <name>    switch condition (full, completion, qa, baseline)
  :reset               restore default settings
  :show                print the document
  :html                print the document's rich content
  :submit              save the description
  :quit                save and exit

Example:
  altwrite edit --figure 12 --user 3`,
	Args: cobra.NoArgs,
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)
	editFlags.register(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, closeSession, err := editFlags.mount(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeSession()

	h := &editHost{s: s, out: cmd.OutOrStdout()}
	return h.run(ctx, cmd.InOrStdin())
}

var errQuit = errors.New("quit")

// editHost drives a session from line commands
type editHost struct {
	s   *assist.Session
	out io.Writer
}

func (h *editHost) run(ctx context.Context, in io.Reader) error {
	h.printf("editing figure %d (%s)\n", h.s.Figure().ID, h.s.Condition())
	if text := h.s.Editor.Text(); text != "" {
		h.printf("%s\n", text)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		err := h.exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			h.printf("error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	_, err := h.s.Submit(ctx)
	return err
}

func (h *editHost) exec(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, ":") {
		return h.s.Editor.Type(line)
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "complete":
		id, err := h.s.Complete(ctx)
		if err != nil {
			return err
		}
		h.printf("[%s] %s\n", id, provisionalText(h.s, id))

	case "accept", "reject":
		resolve := acceptSpan
		if name == "reject" {
			resolve = rejectSpan
		}
		ok, err := resolve(h.s, arg)
		if err != nil {
			return err
		}
		if !ok {
			h.printf("no provisional suggestion\n")
		}

	case "ask":
		n, err := optionalInt(arg, 0)
		if err != nil {
			return err
		}
		asked, err := h.s.Ask(ctx, n)
		if err != nil {
			return err
		}
		for _, sg := range asked {
			qa, _ := sg.QA()
			h.printf("? %s [%s]\n", qa.Question, strings.Join(qa.SuggestedAnswers, " | "))
		}

	case "drafts":
		drafts, err := h.s.GenerateDrafts(ctx)
		if err != nil {
			return err
		}
		for _, g := range drafts {
			h.printf("[%s] %s\n", g.Model, g.Description)
		}

	case "paste":
		return h.s.Editor.Paste(arg)

	case "delete":
		n, err := optionalInt(arg, 1)
		if err != nil {
			return err
		}
		for range n {
			if err := h.s.Editor.Delete(); err != nil {
				return err
			}
		}

	case "newline":
		return h.s.Editor.Paste("\n")

	case "model":
		return h.dispatch(ctx, assist.SetModel{Model: arg})
	case "prompt":
		return h.dispatch(ctx, assist.SetCustomPrompt{Prompt: arg})
	case "toggle":
		return h.dispatch(ctx, assist.ToggleField{Field: model.Field(arg)})
	case "count":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid count %q", arg)
		}
		return h.dispatch(ctx, assist.SetQuestionCount{Count: n})
	case "condition":
		c := model.Condition(arg)
		if !c.Valid() {
			return fmt.Errorf("unknown condition %q", arg)
		}
		return h.dispatch(ctx, assist.SetCondition{Condition: c})
	case "reset":
		return h.dispatch(ctx, assist.Reset{Defaults: h.s.Defaults()})

	case "show":
		h.printf("%s\n", h.s.Editor.Text())
	case "html":
		h.printf("%s\n", h.s.Editor.HTML())

	case "submit":
		d, err := h.s.Submit(ctx)
		if err != nil {
			return err
		}
		if d == nil {
			h.printf("nothing to save\n")
			return nil
		}
		h.printf("saved description %d\n", d.ID)

	case "quit", "q":
		if _, err := h.s.Submit(ctx); err != nil {
			return err
		}
		return errQuit

	default:
		return fmt.Errorf("unknown command :%s", name)
	}
	return nil
}

func (h *editHost) dispatch(ctx context.Context, a assist.Action) error {
	st, err := h.s.Settings.Dispatch(ctx, a)
	h.printf("settings: model=%s questions=%d condition=%s\n", st.Model, st.QuestionCount, h.s.Condition())
	return err
}

func (h *editHost) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(h.out, format, args...)
}

func optionalInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

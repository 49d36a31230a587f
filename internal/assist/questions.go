package assist

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/altwrite/internal/llm"
	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/request"
)

// Questioner runs the clarifying-question flow
type Questioner struct {
	s    *Session
	list *request.Request[[]model.Suggestion]

	mu      sync.Mutex
	history []llm.Message
}

func newQuestioner(s *Session, descriptionID int64) *Questioner {
	q := &Questioner{s: s}
	q.list = request.New(s.ctx, request.Options[[]model.Suggestion]{
		Call:         q.load,
		Dependencies: []any{descriptionID},
		AutoFetch:    descriptionID != 0,
		Logger:       s.logger,
	})
	return q
}

func (q *Questioner) load(ctx context.Context, prev []model.Suggestion) ([]model.Suggestion, error) {
	id := q.s.Sync.ID()
	if id == 0 {
		return prev, nil
	}
	return q.s.deps.Store.SuggestionsByDescription(ctx, id)
}

// descriptionCreated starts loading stored suggestions for the new description
func (q *Questioner) descriptionCreated(id int64) {
	q.list.SetDependencies(id)
	q.list.SetShouldFetch(true)
}

// Request exposes every suggestion known for the description
func (q *Questioner) Request() *request.Request[[]model.Suggestion] {
	return q.list
}

// Suggestions returns the deduplicated question list, newest first
func (q *Questioner) Suggestions() []model.Suggestion {
	return Dedupe(q.list.Data())
}

// Ask requests up to n clarifying questions, one round trip at a time. Each
// answer joins the conversation before the next round so the model can avoid
// repeating itself. A plain-text answer ends the flow early. n <= 0 uses the
// configured question count.
func (q *Questioner) Ask(ctx context.Context, n int) ([]model.Suggestion, error) {
	if err := q.s.require("questions", func(a model.Affordances) bool { return a.Questions }); err != nil {
		return nil, err
	}
	if err := q.s.Sync.Flush(ctx); err != nil {
		return nil, err
	}
	desc := q.s.Sync.Current()
	if !desc.Initialized() {
		q.s.logger.Debug("questions skipped", "reason", ErrMissingContext)
		return nil, ErrMissingContext
	}

	st := q.s.Settings.Current()
	if n <= 0 {
		n = max(st.QuestionCount, MinQuestionCount)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.list.Wait()

	q.s.Events.Log(model.EventQuestionsRequested, map[string]any{"count": n})

	fig := q.s.Figure()
	text := q.s.Editor.Text()
	system := llm.SystemPrompt(st.CustomPrompt)

	var asked []model.Suggestion
	for round := 1; round <= n; round++ {
		prompt := llm.BuildQuestionPrompt(fig, st.Fields, text, round, n)
		resp, err := q.s.deps.Generator.Structured(ctx, llm.StructuredRequest{
			CompletionRequest: llm.CompletionRequest{
				SystemPrompt:  system,
				UserPrompt:    prompt,
				PriorMessages: append([]llm.Message(nil), q.history...),
				Model:         st.Model,
			},
			Function: llm.SuggestQuestionFunction(),
			Count:    1,
		})
		if err != nil {
			return asked, fmt.Errorf("%w: %w", request.ErrFetchFailed, err)
		}

		var qa model.QAContent
		if !resp.Structured || resp.Decode(&qa) != nil || strings.TrimSpace(qa.Question) == "" {
			q.s.logger.Debug("no further questions", "round", round, "requested", n)
			break
		}

		q.history = append(q.history,
			llm.Message{Role: llm.RoleUser, Content: prompt},
			llm.Message{Role: llm.RoleAssistant, Content: string(resp.Arguments)},
		)

		modelID := resp.Model
		if modelID == "" {
			modelID = st.Model
		}
		sg := q.s.tagSuggestion(model.NewQASuggestion(qa, modelID, text), desc.ID)
		if saved, err := q.s.deps.Store.UpsertSuggestion(ctx, sg); err != nil {
			q.s.logger.Warn("question not persisted", "error", err)
		} else {
			sg = *saved
		}

		asked = append(asked, sg)
		q.list.Update(func(list []model.Suggestion) []model.Suggestion {
			return append(slices.Clip(list), sg)
		})
	}
	return asked, nil
}

// Dedupe keeps one qa suggestion per (question, primary answer), newest first.
// Other suggestion types are dropped.
func Dedupe(list []model.Suggestion) []model.Suggestion {
	qas := make([]model.Suggestion, 0, len(list))
	for _, s := range list {
		if _, ok := s.QA(); ok {
			qas = append(qas, s)
		}
	}
	sort.SliceStable(qas, func(i, j int) bool {
		if !qas[i].CreatedAt.Equal(qas[j].CreatedAt) {
			return qas[i].CreatedAt.After(qas[j].CreatedAt)
		}
		return qas[i].ID > qas[j].ID
	})

	type key struct{ question, answer string }
	seen := make(map[key]bool, len(qas))
	out := qas[:0]
	for _, s := range qas {
		qa, _ := s.QA()
		k := key{qa.Question, qa.PrimaryAnswer()}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

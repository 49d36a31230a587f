package assist

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/altwrite/internal/llm"
	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/request"
)

func mountWithText(t *testing.T, f *fixture, text string) *Session {
	t.Helper()
	s := f.mount(t, false)
	require.NoError(t, s.Editor.Type(text))
	settle(t, s)
	require.True(t, s.Sync.Current().Initialized())
	return s
}

func TestAsk_RoundsShareConversation(t *testing.T) {
	f := newFixture(t)
	f.provider.structured = []*llm.StructuredResponse{
		question("What unit is rainfall in?", "mm", "inches"),
		question("Which month is wettest?", "November"),
	}
	s := mountWithText(t, f, "Rainfall by month")

	asked, err := s.Ask(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, asked, 2)

	qa, ok := asked[0].QA()
	require.True(t, ok)
	assert.Equal(t, "What unit is rainfall in?", qa.Question)
	assert.Equal(t, []string{"mm", "inches"}, qa.SuggestedAnswers)
	assert.Equal(t, "Rainfall by month", asked[0].TextContext)
	assert.Equal(t, s.Sync.ID(), asked[0].DescriptionID)
	assert.Equal(t, model.ConditionFull, asked[0].Condition)
	assert.NotZero(t, asked[0].ID)

	reqs := f.provider.structuredRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, llm.SuggestQuestionName, reqs[0].Function.Name)
	assert.Equal(t, 1, reqs[0].Count)
	assert.Empty(t, reqs[0].PriorMessages)
	assert.Contains(t, reqs[0].UserPrompt, "Ask question 1 of 2")
	require.Len(t, reqs[1].PriorMessages, 2)
	assert.Equal(t, llm.RoleAssistant, reqs[1].PriorMessages[1].Role)
	assert.Contains(t, reqs[1].PriorMessages[1].Content, "What unit is rainfall in?")
	assert.Contains(t, reqs[1].UserPrompt, "Ask question 2 of 2")

	stored, err := f.store.SuggestionsByDescription(context.Background(), s.Sync.ID())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.Len(t, s.Questions.Suggestions(), 2)

	settle(t, s)
	events := f.store.Events()
	require.Equal(t, 1, countEvents(events, model.EventQuestionsRequested))
	for _, e := range events {
		if e.Type == model.EventQuestionsRequested {
			assert.Equal(t, 2, e.Data["count"])
		}
	}
}

func TestAsk_StopsOnPlainTextAnswer(t *testing.T) {
	f := newFixture(t)
	f.provider.structured = []*llm.StructuredResponse{
		question("Is the trend seasonal?", "Yes"),
		{Text: "The description already covers everything."},
	}
	s := mountWithText(t, f, "Seasonal rainfall")

	asked, err := s.Ask(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, asked, 1)
	assert.Len(t, f.provider.structuredRequests(), 2)
}

func TestAsk_StopsOnEmptyQuestion(t *testing.T) {
	f := newFixture(t)
	f.provider.structured = []*llm.StructuredResponse{question("   ")}
	s := mountWithText(t, f, "Rain")

	asked, err := s.Ask(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, asked)
	assert.Len(t, f.provider.structuredRequests(), 1)
}

func TestAsk_DefaultCount(t *testing.T) {
	f := newFixture(t)
	for i := range 5 {
		f.provider.structured = append(f.provider.structured, question("Question "+string(rune('A'+i)), "answer"))
	}
	s := mountWithText(t, f, "Rain")

	asked, err := s.Ask(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, asked, model.DefaultSettings().QuestionCount)
	assert.Len(t, f.provider.structuredRequests(), model.DefaultSettings().QuestionCount)
}

func TestAsk_CountAboveSettingsLimit(t *testing.T) {
	f := newFixture(t)
	n := MaxQuestionCount + 5
	for i := range n {
		f.provider.structured = append(f.provider.structured, question("Question "+string(rune('A'+i)), "answer"))
	}
	s := mountWithText(t, f, "Rain")

	asked, err := s.Ask(context.Background(), n)
	require.NoError(t, err)
	assert.Len(t, asked, n)

	reqs := f.provider.structuredRequests()
	require.Len(t, reqs, n, "one round trip per question")
	assert.Contains(t, reqs[n-1].UserPrompt, fmt.Sprintf("question %d of %d", n, n))
}

func TestAsk_HistoryCarriesAcrossRequests(t *testing.T) {
	f := newFixture(t)
	f.provider.structured = []*llm.StructuredResponse{
		question("What is on the x-axis?", "Months"),
		question("What is on the x-axis?", "Months"),
	}
	s := mountWithText(t, f, "Rain")

	_, err := s.Ask(context.Background(), 1)
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), 1)
	require.NoError(t, err)

	reqs := f.provider.structuredRequests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].PriorMessages, 2)

	assert.Len(t, s.Questions.Request().Data(), 2)
	assert.Len(t, s.Questions.Suggestions(), 1, "identical question and answer shown once")
}

func TestAsk_NoDescription(t *testing.T) {
	f := newFixture(t)
	s := f.mount(t, false)

	_, err := s.Ask(context.Background(), 2)
	assert.ErrorIs(t, err, ErrMissingContext)
	assert.Empty(t, f.provider.structuredRequests())
}

func TestAsk_GenerationFailure(t *testing.T) {
	f := newFixture(t)
	s := mountWithText(t, f, "Rain")
	f.provider.mu.Lock()
	f.provider.err = errProvider
	f.provider.mu.Unlock()

	asked, err := s.Ask(context.Background(), 2)
	assert.ErrorIs(t, err, request.ErrFetchFailed)
	assert.ErrorIs(t, err, errProvider)
	assert.Empty(t, asked)
}

func TestDedupe(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	qa := func(id int64, q, a string, at time.Time) model.Suggestion {
		s := model.NewQASuggestion(model.QAContent{Question: q, SuggestedAnswers: []string{a}}, "m", "")
		s.ID = id
		s.CreatedAt = at
		return s
	}

	list := []model.Suggestion{
		qa(1, "Unit?", "mm", base),
		qa(2, "Unit?", "mm", base.Add(time.Minute)),
		qa(3, "Unit?", "inches", base),
		model.NewCompletionSuggestion("text", "m", ""),
		qa(4, "Peak?", "Nov", base.Add(time.Minute)),
	}

	out := Dedupe(list)
	require.Len(t, out, 3)

	ids := []int64{out[0].ID, out[1].ID, out[2].ID}
	assert.Equal(t, []int64{4, 2, 3}, ids, "newest first, ties broken by id")
	for _, s := range out {
		assert.Equal(t, model.SuggestionQA, s.Type)
	}

	assert.Len(t, list, 5, "input is not modified in length")
	assert.Empty(t, Dedupe(nil))
}

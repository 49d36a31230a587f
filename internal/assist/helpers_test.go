package assist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ppiankov/altwrite/internal/llm"
	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/store"
)

// fakeProvider scripts generation results and records every request
type fakeProvider struct {
	mu         sync.Mutex
	texts      []string
	structured []*llm.StructuredResponse
	err        error

	// onComplete, when set, runs before each Complete and may block or fail
	onComplete func(ctx context.Context, call int) error

	completeCalls   []llm.CompletionRequest
	structuredCalls []llm.StructuredRequest
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) IsAvailable(context.Context) bool { return true }

func (p *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	call := len(p.completeCalls)
	p.completeCalls = append(p.completeCalls, req)
	hook := p.onComplete
	p.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	text := "A generated sentence."
	if call < len(p.texts) {
		text = p.texts[call]
	} else if len(p.texts) > 0 {
		text = p.texts[len(p.texts)-1]
	}
	modelID := req.Model
	if modelID == "" {
		modelID = "fake-model"
	}
	return &llm.CompletionResponse{Text: text, Model: modelID}, nil
}

func (p *fakeProvider) CompleteStructured(ctx context.Context, req llm.StructuredRequest) (*llm.StructuredResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	call := len(p.structuredCalls)
	p.structuredCalls = append(p.structuredCalls, req)
	if p.err != nil {
		return nil, p.err
	}
	if call < len(p.structured) {
		return p.structured[call], nil
	}
	return &llm.StructuredResponse{Text: "Nothing else to ask."}, nil
}

func (p *fakeProvider) completions() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.completeCalls...)
}

func (p *fakeProvider) structuredRequests() []llm.StructuredRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.StructuredRequest(nil), p.structuredCalls...)
}

func question(q string, answers ...string) *llm.StructuredResponse {
	args, _ := json.Marshal(map[string]any{"question": q, "suggested_answer": answers})
	return &llm.StructuredResponse{Structured: true, Arguments: args, Model: "fake-model"}
}

type fixture struct {
	store    *store.MemoryStore
	provider *fakeProvider
	deps     Deps
}

const (
	testUser   int64 = 10
	testFigure int64 = 20
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	st.PutFigure(model.Figure{
		ID:         testFigure,
		PaperID:    30,
		FigureType: "line chart",
		Caption:    "Monthly rainfall in Lisbon",
	})
	p := &fakeProvider{}
	return &fixture{
		store:    st,
		provider: p,
		deps: Deps{
			Store:     st,
			Generator: llm.NewGeneratorWithProvider(p, llm.Config{Model: "fake-model"}),
			Settings:  model.DefaultSettings(),
		},
	}
}

func (f *fixture) mount(t *testing.T, study bool) *Session {
	t.Helper()
	s, err := Mount(context.Background(), f.deps, testFigure, testUser, study)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// settle waits for queued description saves and event sends
func settle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Sync.Flush(ctx))
	require.NoError(t, s.Events.Flush(ctx))
}

func eventTypes(events []model.Event) []model.EventType {
	out := make([]model.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func countEvents(events []model.Event, t model.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}

var errProvider = errors.New("provider unavailable")

package assist

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/altwrite/internal/editor"
	"github.com/ppiankov/altwrite/internal/llm"
	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/request"
)

// Completion is a generated continuation waiting to be, or already, inserted
type Completion struct {
	Text        string
	Position    int    // Cursor when the request was made
	Model       string
	TextContext string // Document text when the request was made
	SpanID      string // Set once inserted as a provisional span

	prompt string
}

// Completer runs the inline completion flow for a session
type Completer struct {
	s   *Session
	req *request.Request[*Completion]

	mu      sync.Mutex
	history []llm.Message
}

func newCompleter(s *Session) *Completer {
	c := &Completer{s: s}
	c.req = request.New(s.ctx, request.Options[*Completion]{
		Call:      c.generate,
		KeepStale: s.deps.Session.KeepStaleResponses,
		Logger:    s.logger,
	})
	return c
}

// Request exposes the pending generation result
func (c *Completer) Request() *request.Request[*Completion] {
	return c.req
}

// History returns the conversation so far
func (c *Completer) History() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Message(nil), c.history...)
}

// Complete requests text for the cursor position and inserts it as a
// provisional span. It returns the span id.
//
// With an empty document before the cursor a fresh draft is requested instead
// of a continuation. A newer Complete supersedes this one unless stale
// responses are kept.
func (c *Completer) Complete(ctx context.Context) (string, error) {
	if err := c.s.require("completion", func(a model.Affordances) bool { return a.Completion }); err != nil {
		return "", err
	}

	c.s.Events.Log(model.EventCompletionRequested, map[string]any{"position": c.s.Editor.Cursor()})
	if err := c.req.Fetch(ctx); err != nil {
		return "", err
	}

	comp := c.req.Data()
	if comp == nil {
		return "", fmt.Errorf("%w: result cleared before insertion", request.ErrFetchFailed)
	}
	return c.insert(ctx, comp)
}

func (c *Completer) generate(ctx context.Context, _ *Completion) (*Completion, error) {
	ed := c.s.Editor
	pos := ed.Cursor()
	before, after := ed.Split()
	st := c.s.Settings.Current()
	fig := c.s.Figure()

	prompt := llm.BuildDraftPrompt(fig, st.Fields)
	if strings.TrimSpace(before) != "" {
		prompt = llm.BuildContinuationPrompt(fig, st.Fields, before, after)
	}

	resp, err := c.s.deps.Generator.Complete(ctx, llm.CompletionRequest{
		SystemPrompt:  llm.SystemPrompt(st.CustomPrompt),
		UserPrompt:    prompt,
		PriorMessages: c.History(),
		Model:         st.Model,
	})
	if err != nil {
		return nil, err
	}

	modelID := resp.Model
	if modelID == "" {
		modelID = st.Model
	}
	return &Completion{
		Text:        strings.TrimSpace(resp.Text),
		Position:    pos,
		Model:       modelID,
		TextContext: before + after,
		prompt:      prompt,
	}, nil
}

func (c *Completer) insert(ctx context.Context, comp *Completion) (string, error) {
	c.mu.Lock()
	if comp.SpanID != "" {
		id := comp.SpanID
		c.mu.Unlock()
		return id, nil
	}
	id, err := c.s.Editor.InsertProvisional(comp.Position, comp.Text)
	if err != nil {
		c.mu.Unlock()
		return "", err
	}
	comp.SpanID = id
	c.history = append(c.history,
		llm.Message{Role: llm.RoleUser, Content: comp.prompt},
		llm.Message{Role: llm.RoleAssistant, Content: comp.Text},
	)
	c.mu.Unlock()

	c.s.Events.Log(model.EventCompletionInserted, map[string]any{"text": comp.Text, "span_id": id})
	c.persist(ctx, comp)
	return id, nil
}

// persist records the completion once the description exists. The insertion
// itself usually creates the description, so queued saves are awaited first.
func (c *Completer) persist(ctx context.Context, comp *Completion) {
	if err := c.s.Sync.Flush(ctx); err != nil {
		c.s.logger.Warn("completion not persisted", "error", err)
		return
	}
	desc := c.s.Sync.Current()
	if !desc.Initialized() {
		c.s.logger.Debug("completion not persisted", "reason", ErrMissingContext)
		return
	}

	sg := c.s.tagSuggestion(model.NewCompletionSuggestion(comp.Text, comp.Model, comp.TextContext), desc.ID)
	if _, err := c.s.deps.Store.UpsertSuggestion(ctx, sg); err != nil {
		c.s.logger.Warn("completion not persisted", "error", err)
	}
}

// Accept makes the proposal's span permanent text and clears the pending result
func (c *Completer) Accept(p *editor.Proposal) (bool, error) {
	return c.resolve(p, c.s.Editor.Accept, model.EventSuggestionAccepted)
}

// Reject removes the proposal's span and clears the pending result
func (c *Completer) Reject(p *editor.Proposal) (bool, error) {
	return c.resolve(p, c.s.Editor.Reject, model.EventSuggestionRejected)
}

func (c *Completer) resolve(p *editor.Proposal, apply func(*editor.Proposal) (bool, error), ev model.EventType) (bool, error) {
	ok, err := apply(p)
	if err != nil {
		return false, err
	}
	c.req.SetData(nil)
	if ok {
		c.s.Events.Log(ev, map[string]any{"text": p.Text, "span_id": p.ID})
	}
	return ok, nil
}

// Package assist wires the editor to generation and persistence: inline
// completions, accept/reject of provisional spans, clarifying questions, draft
// options, description sync and settings.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/altwrite/internal/cache"
	"github.com/ppiankov/altwrite/internal/doc"
	"github.com/ppiankov/altwrite/internal/editor"
	"github.com/ppiankov/altwrite/internal/eventlog"
	"github.com/ppiankov/altwrite/internal/llm"
	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/request"
	"github.com/ppiankov/altwrite/internal/store"
)

var (
	// ErrMissingContext is returned when a flow needs a user, figure or
	// description that does not exist yet. The flow is skipped.
	ErrMissingContext = errors.New("missing user, figure or description")

	// ErrNotEnabled is returned when the session's condition does not offer a flow
	ErrNotEnabled = errors.New("flow not enabled for this condition")
)

// Deps are the collaborators a session needs
type Deps struct {
	Store     store.Store
	Generator *llm.Generator
	Session   model.SessionConfig
	Settings  model.Settings // Used when the user has no stored settings

	DraftCache    cache.Cache
	DraftCacheTTL time.Duration
	Workers       int

	Layout editor.Layout
	Logger *slog.Logger
}

// Session is one mounted editing session for a figure
type Session struct {
	deps   Deps
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	figure model.Figure
	userID int64
	study  bool

	// Settings for a user with none stored; study sessions default to the study arm
	defaults model.Settings

	Editor    *editor.Editor
	Settings  *SettingsMachine
	Events    *eventlog.Logger
	Sync      *DescriptionSync
	Completer *Completer
	Questions *Questioner
	Drafter   *Drafter
	Drafts    *request.Request[[]model.GeneratedDescription]

	closeOnce sync.Once
	closeErr  error
}

// Mount loads the figure, the user's settings and any saved description, and
// starts observing the editor.
func Mount(ctx context.Context, deps Deps, figureID, userID int64, study bool) (*Session, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if userID == 0 || figureID == 0 {
		logger.Debug("session not mounted", "reason", ErrMissingContext, "user_id", userID, "figure_id", figureID)
		return nil, ErrMissingContext
	}

	fig, err := deps.Store.Figure(ctx, figureID)
	if err != nil {
		return nil, fmt.Errorf("load figure: %w", err)
	}

	desc, err := deps.Store.DescriptionByFigure(ctx, figureID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load description: %w", err)
	}

	defaults := deps.Settings
	if defaults.Model == "" {
		defaults = model.DefaultSettings()
	}
	if study {
		defaults.Condition = model.DefaultCondition(true, deps.Session.StudyCondition)
	}
	rec := model.SettingsRecord{UserID: userID, CurrentSettings: defaults, StudySession: study}
	if stored, err := deps.Store.SettingsByUser(ctx, userID); err == nil {
		rec = *stored
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Warn("using default settings", "user_id", userID, "error", err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		deps:     deps,
		logger:   logger.With("figure_id", figureID, "user_id", userID),
		ctx:      sctx,
		cancel:   cancel,
		figure:   *fig,
		userID:   userID,
		study:    study,
		defaults: defaults,
	}

	s.Editor = editor.New(doc.New(), s.editorOptions()...)
	if err := s.restore(desc); err != nil {
		s.logger.Warn("saved description not restored", "error", err)
	}

	s.Settings = NewSettingsMachine(deps.Store, rec, s.logger, func(model.Settings) {
		s.Events.SetCondition(s.Condition())
	})

	var descID int64
	if desc != nil {
		descID = desc.ID
	}
	s.Events = eventlog.New(sctx, deps.Store, eventlog.Tags{
		UserID:        userID,
		FigureID:      figureID,
		DescriptionID: descID,
		Condition:     s.Condition(),
		StudySession:  study,
	}, eventlog.WithLogger(s.logger))

	s.Sync = NewDescriptionSync(sctx, deps.Store, desc, s.descriptionTemplate, s.descriptionCreated, s.logger)
	s.Completer = newCompleter(s)
	s.Questions = newQuestioner(s, descID)

	draftOpts := []DrafterOption{
		WithSettings(s.Settings.Current),
		WithWorkers(deps.Workers),
		WithDrafterLogger(s.logger),
	}
	if len(deps.Session.DraftModels) > 0 {
		draftOpts = append(draftOpts, WithModels(deps.Session.DraftModels...))
	}
	if deps.DraftCache != nil {
		draftOpts = append(draftOpts, WithDraftCache(deps.DraftCache, deps.DraftCacheTTL))
	}
	s.Drafter = NewDrafter(deps.Store, deps.Generator, draftOpts...)
	s.Drafts = s.Drafter.List(sctx, figureID, s.Affordances().Drafts)

	s.Events.Attach(s.Editor)
	s.Sync.Attach(s.Editor)

	s.logger.Debug("session mounted", "condition", s.Condition(), "study_session", study, "description_id", descID)
	return s, nil
}

func (s *Session) editorOptions() []editor.Option {
	opts := []editor.Option{
		editor.WithLogger(s.logger),
		editor.AllowMultiplePending(s.deps.Session.AllowMultiplePending),
	}
	if s.deps.Session.MatchByContent {
		opts = append(opts, editor.WithMatcher(editor.MatchContent))
	}
	if s.deps.Layout != nil {
		opts = append(opts, editor.WithLayout(s.deps.Layout))
	}
	return opts
}

// restore loads the saved rich content, falling back to the plain string
func (s *Session) restore(desc *model.Description) error {
	if desc == nil {
		return nil
	}
	d := doc.FromText(desc.CurrentString)
	if desc.CurrentHTML != "" {
		parsed, err := doc.ParseHTML(desc.CurrentHTML)
		if err != nil {
			if loadErr := s.Editor.Load(d); loadErr != nil {
				return loadErr
			}
			return fmt.Errorf("parse saved html: %w", err)
		}
		d = parsed
	}
	return s.Editor.Load(d)
}

func (s *Session) descriptionTemplate() model.Description {
	return model.Description{
		UserID:       s.userID,
		FigureID:     s.figure.ID,
		PaperID:      s.figure.PaperID,
		StudySession: s.study,
		Condition:    s.Condition(),
	}
}

func (s *Session) descriptionCreated(d model.Description) {
	s.Events.SetDescriptionID(d.ID)
	s.Questions.descriptionCreated(d.ID)
}

func (s *Session) tagSuggestion(sg model.Suggestion, descriptionID int64) model.Suggestion {
	sg.UserID = s.userID
	sg.DescriptionID = descriptionID
	sg.StudySession = s.study
	sg.Condition = s.Condition()
	return sg
}

// Figure returns the mounted figure
func (s *Session) Figure() model.Figure {
	return s.figure
}

// Condition returns the active experiment condition: the user's setting, or
// the session default when the setting is unset. The study flag only picks the
// default, so a stored or dispatched condition overrides the study arm.
func (s *Session) Condition() model.Condition {
	if s.Settings != nil {
		if c := s.Settings.Current().Condition; c.Valid() {
			return c
		}
	}
	if c := s.defaults.Condition; c.Valid() {
		return c
	}
	return model.DefaultCondition(s.study, s.deps.Session.StudyCondition)
}

// Defaults returns the settings a Reset restores in this session
func (s *Session) Defaults() model.Settings {
	return s.defaults
}

// Affordances returns the flows the current condition enables
func (s *Session) Affordances() model.Affordances {
	return model.AffordancesFor(s.Condition(), s.study)
}

func (s *Session) require(flow string, enabled func(model.Affordances) bool) error {
	if !enabled(s.Affordances()) {
		s.logger.Debug("flow skipped", "flow", flow, "reason", ErrNotEnabled, "condition", s.Condition())
		return ErrNotEnabled
	}
	if !s.deps.Generator.IsEnabled() {
		return llm.ErrDisabled
	}
	return nil
}

// Complete inserts a generated continuation at the cursor
func (s *Session) Complete(ctx context.Context) (string, error) {
	return s.Completer.Complete(ctx)
}

// Activate opens the confirmation for the provisional span at pos
func (s *Session) Activate(pos int) (*editor.Proposal, bool) {
	return s.Editor.Activate(pos)
}

// Accept resolves p as accepted
func (s *Session) Accept(p *editor.Proposal) (bool, error) {
	return s.Completer.Accept(p)
}

// Reject resolves p as rejected
func (s *Session) Reject(p *editor.Proposal) (bool, error) {
	return s.Completer.Reject(p)
}

// Ask requests up to n clarifying questions
func (s *Session) Ask(ctx context.Context, n int) ([]model.Suggestion, error) {
	return s.Questions.Ask(ctx, n)
}

// GenerateDrafts drafts the figure with every configured model and refreshes
// the draft list
func (s *Session) GenerateDrafts(ctx context.Context) ([]model.GeneratedDescription, error) {
	if err := s.require("drafts", func(a model.Affordances) bool { return a.Drafts }); err != nil {
		return nil, err
	}

	drafts, err := s.Drafter.DraftFigure(ctx, s.figure.ID)
	if err != nil {
		return nil, err
	}
	for _, g := range drafts {
		s.Events.Log(model.EventDraftGenerated, map[string]any{"model": g.Model})
	}
	if err := s.Drafts.Fetch(ctx); err != nil {
		s.logger.Warn("draft list not refreshed", "error", err)
	}
	return drafts, nil
}

// Submit saves the current text and records the submission
func (s *Session) Submit(ctx context.Context) (*model.Description, error) {
	text := s.Editor.Text()
	d, err := s.Sync.Submit(ctx, text, s.Editor.HTML())
	if err != nil {
		return nil, fmt.Errorf("submit description: %w", err)
	}
	s.Events.Log(model.EventSubmit, map[string]any{"text": text})
	return d, nil
}

// Close stops observing the editor and waits for pending saves and events
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.Events.Detach()
		s.Sync.Detach()
		syncErr := s.Sync.Flush(ctx)
		eventsErr := s.Events.Flush(ctx)
		s.cancel()
		s.closeErr = errors.Join(syncErr, eventsErr)
	})
	return s.closeErr
}

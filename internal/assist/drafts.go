package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/altwrite/internal/cache"
	"github.com/ppiankov/altwrite/internal/llm"
	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/request"
	"github.com/ppiankov/altwrite/internal/store"
	"github.com/ppiankov/altwrite/internal/worker"
)

// Drafter writes complete alt-text options for a figure, one per model. It
// never touches the live document.
type Drafter struct {
	store    store.Store
	gen      *llm.Generator
	cache    cache.Cache
	cacheTTL time.Duration
	models   []string
	workers  int
	settings func() model.Settings
	logger   *slog.Logger
}

// DrafterOption configures a Drafter
type DrafterOption func(*Drafter)

// WithDraftCache reuses generated text for identical figure, model and prompt
func WithDraftCache(c cache.Cache, ttl time.Duration) DrafterOption {
	return func(d *Drafter) {
		d.cache = c
		d.cacheTTL = ttl
	}
}

// WithModels sets the models to draft with. Without it the settings model is used.
func WithModels(models ...string) DrafterOption {
	return func(d *Drafter) { d.models = models }
}

// WithWorkers bounds how many models are drafted at once
func WithWorkers(n int) DrafterOption {
	return func(d *Drafter) { d.workers = n }
}

// WithSettings supplies the prompt settings
func WithSettings(fn func() model.Settings) DrafterOption {
	return func(d *Drafter) { d.settings = fn }
}

// WithDrafterLogger sets the logger
func WithDrafterLogger(l *slog.Logger) DrafterOption {
	return func(d *Drafter) { d.logger = l }
}

// NewDrafter creates a Drafter
func NewDrafter(st store.Store, gen *llm.Generator, opts ...DrafterOption) *Drafter {
	d := &Drafter{
		store:    st,
		gen:      gen,
		workers:  4,
		settings: model.DefaultSettings,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DraftFigure drafts the figure with every model concurrently and stores each
// result, replacing the previous draft of that model. It fails only when no
// model produced a draft.
func (d *Drafter) DraftFigure(ctx context.Context, figureID int64) ([]model.GeneratedDescription, error) {
	if !d.gen.IsEnabled() {
		return nil, llm.ErrDisabled
	}

	fig, err := d.store.Figure(ctx, figureID)
	if err != nil {
		return nil, fmt.Errorf("load figure: %w", err)
	}

	st := d.settings()
	models := d.models
	if len(models) == 0 {
		models = []string{st.Model}
	}

	system := llm.SystemPrompt(st.CustomPrompt)
	prompt := llm.BuildDraftPrompt(*fig, st.Fields)

	pool := worker.NewPoolWithContext(ctx, min(d.workers, len(models)))
	pool.Start()
	for _, m := range models {
		pool.Submit(&draftJob{
			drafter:  d,
			figureID: fig.ID,
			model:    m,
			system:   system,
			prompt:   prompt,
		})
	}

	var drafts []model.GeneratedDescription
	var errs []error
	for _, r := range pool.Wait() {
		res := r.(*draftResult)
		if res.err != nil {
			d.logger.Warn("draft failed", "figure_id", figureID, "model", res.model, "error", res.err)
			errs = append(errs, fmt.Errorf("%s: %w", res.model, res.err))
			continue
		}
		drafts = append(drafts, res.draft)
	}

	if len(drafts) == 0 {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
		}
		return nil, errors.Join(errs...)
	}
	return drafts, nil
}

// List returns the stored drafts of a figure, fetched on creation when enabled
func (d *Drafter) List(ctx context.Context, figureID int64, enabled bool) *request.Request[[]model.GeneratedDescription] {
	return request.New(ctx, request.Options[[]model.GeneratedDescription]{
		Call: func(ctx context.Context, _ []model.GeneratedDescription) ([]model.GeneratedDescription, error) {
			return d.store.GeneratedDescriptionsByFigure(ctx, figureID)
		},
		AutoFetch: enabled,
		Logger:    d.logger,
	})
}

type draftJob struct {
	drafter  *Drafter
	figureID int64
	model    string
	system   string
	prompt   string
}

type draftResult struct {
	model string
	draft model.GeneratedDescription
	err   error
}

func (r *draftResult) GetError() error { return r.err }

func (j *draftJob) Execute(ctx context.Context) worker.Result {
	d := j.drafter
	text, err := j.generate(ctx)
	if err != nil {
		return &draftResult{model: j.model, err: err}
	}

	saved, err := d.store.UpsertGeneratedDescription(ctx, model.GeneratedDescription{
		FigureID:    j.figureID,
		Model:       j.model,
		Description: text,
	})
	if err != nil {
		return &draftResult{model: j.model, err: fmt.Errorf("persist draft: %w", err)}
	}
	return &draftResult{model: j.model, draft: *saved}
}

func (j *draftJob) generate(ctx context.Context) (string, error) {
	d := j.drafter
	key := cache.DraftKey(j.figureID, j.model, j.system+"\n"+j.prompt)
	if d.cache != nil {
		if text, ok := cache.GetJSON[string](d.cache, key); ok {
			d.logger.Debug("draft cache hit", "figure_id", j.figureID, "model", j.model)
			return text, nil
		}
	}

	resp, err := d.gen.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: j.system,
		UserPrompt:   j.prompt,
		Model:        j.model,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("model %s returned an empty draft", j.model)
	}

	if d.cache != nil {
		if err := cache.SetJSON(d.cache, key, text, d.cacheTTL); err != nil {
			d.logger.Warn("draft cache write failed", "error", err)
		}
	}
	return text, nil
}

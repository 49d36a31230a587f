package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/altwrite/internal/assist"
	"github.com/ppiankov/altwrite/internal/cache"
	"github.com/ppiankov/altwrite/internal/llm"
	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/store"
	"github.com/ppiankov/altwrite/internal/worker"
)

// app holds the collaborators shared by every command
type app struct {
	cfg    *model.Config
	logger *slog.Logger
	store  store.Store
	gen    *llm.Generator
	drafts cache.Cache
}

// newApp loads configuration and builds the store, generator and caches.
// figuresFile seeds the memory backend and is ignored otherwise.
func newApp(cmd *cobra.Command, figuresFile string) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
	slog.SetDefault(logger)

	st, err := buildStore(cfg, figuresFile, logger)
	if err != nil {
		return nil, err
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	gen, err := llm.NewGenerator(llm.ConfigFromModel(cfg.LLM), llm.WithLimiter(limiter), llm.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("configure generation: %w", err)
	}
	if !gen.IsEnabled() {
		logger.Warn("no LLM provider configured, generation disabled")
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		gen:    gen,
		drafts: cache.FromConfig(cfg.Cache),
	}, nil
}

func buildStore(cfg *model.Config, figuresFile string, logger *slog.Logger) (store.Store, error) {
	if cfg.Store.Backend != "memory" {
		if figuresFile != "" {
			logger.Warn("--figures only applies to the memory store", "backend", cfg.Store.Backend)
		}
		return store.New(cfg.Store, cfg.Cache, logger)
	}

	mem := store.NewMemoryStore()
	if figuresFile != "" {
		figs, err := readFigures(figuresFile)
		if err != nil {
			return nil, err
		}
		for _, f := range figs {
			mem.PutFigure(f)
		}
		logger.Debug("seeded memory store", "figures", len(figs))
	}
	return store.Wrap(mem, cfg.Cache, logger), nil
}

// readFigures reads a JSON array of figures
func readFigures(path string) ([]model.Figure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read figures: %w", err)
	}
	var figs []model.Figure
	if err := json.Unmarshal(data, &figs); err != nil {
		return nil, fmt.Errorf("parse figures %s: %w", path, err)
	}
	return figs, nil
}

func (a *app) deps() assist.Deps {
	return assist.Deps{
		Store:         a.store,
		Generator:     a.gen,
		Session:       a.cfg.Session,
		Settings:      a.cfg.Settings,
		DraftCache:    a.drafts,
		DraftCacheTTL: a.cfg.Cache.DiskTTL,
		Workers:       a.cfg.Concurrency.Workers,
		Logger:        a.logger,
	}
}

func (a *app) drafter() *assist.Drafter {
	opts := []assist.DrafterOption{
		assist.WithWorkers(a.cfg.Concurrency.Workers),
		assist.WithDraftCache(a.drafts, a.cfg.Cache.DiskTTL),
		assist.WithSettings(func() model.Settings { return a.cfg.Settings }),
		assist.WithDrafterLogger(a.logger),
	}
	if len(a.cfg.Session.DraftModels) > 0 {
		opts = append(opts, assist.WithModels(a.cfg.Session.DraftModels...))
	}
	return assist.NewDrafter(a.store, a.gen, opts...)
}

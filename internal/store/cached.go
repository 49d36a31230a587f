package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/altwrite/internal/cache"
	"github.com/ppiankov/altwrite/internal/model"
)

// CachedStore is a read-through cache in front of another Store. Reads of
// figures, descriptions, suggestions and drafts are cached; every write
// invalidates the entries it could have changed. Events and settings pass
// straight through.
type CachedStore struct {
	Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps next with c
func NewCachedStore(next Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: next, cache: c, ttl: ttl, logger: logger}
}

func figureKey(id int64) string        { return cache.Key("figure", fmt.Sprint(id)) }
func descriptionKey(id int64) string   { return cache.Key("description", fmt.Sprint(id)) }
func suggestionsKey(id int64) string   { return cache.Key("suggestions", fmt.Sprint(id)) }
func generatedKey(figure int64) string { return cache.Key("generated", fmt.Sprint(figure)) }

func readThrough[T any](s *CachedStore, key string, load func() (T, error)) (T, error) {
	if v, ok := cache.GetJSON[T](s.cache, key); ok {
		s.logger.Debug("store cache hit", "key", key)
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if err := cache.SetJSON(s.cache, key, v, s.ttl); err != nil {
		s.logger.Warn("store cache write failed", "key", key, "error", err)
	}
	return v, nil
}

func (s *CachedStore) Figure(ctx context.Context, id int64) (*model.Figure, error) {
	return readThrough(s, figureKey(id), func() (*model.Figure, error) {
		return s.Store.Figure(ctx, id)
	})
}

func (s *CachedStore) DescriptionByFigure(ctx context.Context, figureID int64) (*model.Description, error) {
	return readThrough(s, descriptionKey(figureID), func() (*model.Description, error) {
		return s.Store.DescriptionByFigure(ctx, figureID)
	})
}

func (s *CachedStore) UpsertDescription(ctx context.Context, d model.Description) (*model.Description, error) {
	out, err := s.Store.UpsertDescription(ctx, d)
	_ = s.cache.Delete(descriptionKey(d.FigureID))
	if out != nil && out.FigureID != d.FigureID {
		_ = s.cache.Delete(descriptionKey(out.FigureID))
	}
	return out, err
}

func (s *CachedStore) UpsertSuggestion(ctx context.Context, sg model.Suggestion) (*model.Suggestion, error) {
	out, err := s.Store.UpsertSuggestion(ctx, sg)
	_ = s.cache.Delete(suggestionsKey(sg.DescriptionID))
	return out, err
}

func (s *CachedStore) SuggestionsByDescription(ctx context.Context, descriptionID int64) ([]model.Suggestion, error) {
	return readThrough(s, suggestionsKey(descriptionID), func() ([]model.Suggestion, error) {
		return s.Store.SuggestionsByDescription(ctx, descriptionID)
	})
}

func (s *CachedStore) UpsertGeneratedDescription(ctx context.Context, g model.GeneratedDescription) (*model.GeneratedDescription, error) {
	out, err := s.Store.UpsertGeneratedDescription(ctx, g)
	_ = s.cache.Delete(generatedKey(g.FigureID))
	return out, err
}

func (s *CachedStore) GeneratedDescriptionsByFigure(ctx context.Context, figureID int64) ([]model.GeneratedDescription, error) {
	return readThrough(s, generatedKey(figureID), func() ([]model.GeneratedDescription, error) {
		return s.Store.GeneratedDescriptionsByFigure(ctx, figureID)
	})
}

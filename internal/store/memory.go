package store

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/altwrite/internal/model"
)

// MemoryStore is an in-process Store with the same upsert rules as the API
type MemoryStore struct {
	mu           sync.Mutex
	nextID       int64
	figures      map[int64]model.Figure
	descriptions map[int64]*model.Description
	suggestions  []model.Suggestion
	generated    []model.GeneratedDescription
	events       []model.Event
	settings     map[int64]*model.SettingsRecord
	now          func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		figures:      make(map[int64]model.Figure),
		descriptions: make(map[int64]*model.Description),
		settings:     make(map[int64]*model.SettingsRecord),
		now:          time.Now,
	}
}

// PutFigure adds or replaces a figure. Figures are created by the upload
// pipeline, so the engine never writes them.
func (m *MemoryStore) PutFigure(fig model.Figure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fig.ID == 0 {
		fig.ID = m.id()
	}
	m.figures[fig.ID] = fig
}

func (m *MemoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) Figure(_ context.Context, id int64) (*model.Figure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fig, ok := m.figures[id]
	if !ok {
		return nil, fmt.Errorf("figure %d: %w", id, ErrNotFound)
	}
	return &fig, nil
}

func (m *MemoryStore) DescriptionByFigure(_ context.Context, figureID int64) (*model.Description, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.descriptions {
		if d.FigureID == figureID {
			return cloneDescription(d), nil
		}
	}
	return nil, fmt.Errorf("description for figure %d: %w", figureID, ErrNotFound)
}

func (m *MemoryStore) UpsertDescription(_ context.Context, in model.Description) (*model.Description, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var d *model.Description
	if in.ID != 0 {
		d = m.descriptions[in.ID]
	}
	if d == nil && in.FigureID != 0 {
		for _, existing := range m.descriptions {
			if existing.FigureID == in.FigureID {
				d = existing
				break
			}
		}
	}

	if d == nil {
		d = &model.Description{
			ID:                m.id(),
			CurrentString:     in.CurrentString,
			CurrentHTML:       in.CurrentHTML,
			SummarizedVersion: in.SummarizedVersion,
			StudySession:      in.StudySession,
			Condition:         in.Condition,
			UserID:            in.UserID,
			FigureID:          in.FigureID,
			PaperID:           in.PaperID,
		}
		m.descriptions[d.ID] = d
		return cloneDescription(d), nil
	}

	if in.CurrentString != "" && in.CurrentHTML != "" {
		d.CurrentString = in.CurrentString
		d.CurrentHTML = in.CurrentHTML
		d.History = append(d.History, model.HistoryEntry{
			CurrentString: in.CurrentString,
			CurrentHTML:   in.CurrentHTML,
		})
	}
	if in.SummarizedVersion != "" {
		d.SummarizedVersion = in.SummarizedVersion
	}
	d.UserID = in.UserID
	d.FigureID = in.FigureID
	d.PaperID = in.PaperID
	d.StudySession = in.StudySession
	d.Condition = in.Condition
	if d.Condition == "" {
		d.Condition = model.ConditionFull
	}
	return cloneDescription(d), nil
}

func (m *MemoryStore) UpsertSuggestion(_ context.Context, s model.Suggestion) (*model.Suggestion, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("store error (%d): %w", http.StatusBadRequest, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID != 0 {
		for i := range m.suggestions {
			if m.suggestions[i].ID == s.ID {
				m.suggestions[i] = s
				return &s, nil
			}
		}
	}
	s.ID = m.id()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now().UTC()
	}
	m.suggestions = append(m.suggestions, s)
	return &s, nil
}

func (m *MemoryStore) SuggestionsByDescription(_ context.Context, descriptionID int64) ([]model.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Suggestion
	for _, s := range m.suggestions {
		if s.DescriptionID == descriptionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertGeneratedDescription(_ context.Context, g model.GeneratedDescription) (*model.GeneratedDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.generated {
		existing := m.generated[i]
		if (g.ID != 0 && existing.ID == g.ID) ||
			(g.ID == 0 && existing.FigureID == g.FigureID && existing.Model == g.Model) {
			g.ID = existing.ID
			m.generated[i] = g
			return &g, nil
		}
	}
	g.ID = m.id()
	m.generated = append(m.generated, g)
	return &g, nil
}

func (m *MemoryStore) GeneratedDescriptionsByFigure(_ context.Context, figureID int64) ([]model.GeneratedDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.GeneratedDescription
	for _, g := range m.generated {
		if g.FigureID == figureID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	if e.Time.IsZero() {
		e.Time = m.now().UTC()
	}
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of every recorded event in arrival order
func (m *MemoryStore) Events() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, len(m.events))
	copy(out, m.events)
	return out
}

// UpsertSettings creates a record or replaces its current settings, moving
// the previous value into the history.
func (m *MemoryStore) UpsertSettings(_ context.Context, r model.SettingsRecord) (*model.SettingsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	existing, ok := m.settings[r.ID]
	if !ok || r.ID == 0 {
		rec := &model.SettingsRecord{
			ID:              m.id(),
			CurrentSettings: r.CurrentSettings,
			LastChanged:     now.Format(http.TimeFormat),
			StudySession:    r.StudySession,
			UserID:          r.UserID,
			FigureID:        r.FigureID,
		}
		m.settings[rec.ID] = rec
		return cloneSettings(rec), nil
	}

	existing.History = append(existing.History, model.SettingsChange{
		Timestamp: now.Format("2006-01-02T15:04:05.000000"),
		Settings:  existing.CurrentSettings,
	})
	existing.CurrentSettings = r.CurrentSettings
	existing.LastChanged = now.Format(http.TimeFormat)
	existing.UserID = r.UserID
	existing.StudySession = r.StudySession
	return cloneSettings(existing), nil
}

func (m *MemoryStore) SettingsByUser(_ context.Context, userID int64) (*model.SettingsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.settings))
	for id, r := range m.settings {
		if r.UserID == userID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("settings for user %d: %w", userID, ErrNotFound)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	return cloneSettings(m.settings[ids[0]]), nil
}

func cloneDescription(d *model.Description) *model.Description {
	out := *d
	out.History = append([]model.HistoryEntry(nil), d.History...)
	return &out
}

func cloneSettings(r *model.SettingsRecord) *model.SettingsRecord {
	out := *r
	out.History = append([]model.SettingsChange(nil), r.History...)
	return &out
}

package assist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/store"
)

// Stored question counts are clamped to this range. Ask honours any explicit count.
const (
	MinQuestionCount = 1
	MaxQuestionCount = 10
)

// Action is one transition of the settings state machine
type Action interface {
	reduce(model.Settings) model.Settings
}

// SetModel selects the generation model
type SetModel struct{ Model string }

// SetCustomPrompt replaces the author's extra instructions
type SetCustomPrompt struct{ Prompt string }

// ToggleField flips whether a figure field reaches the prompt
type ToggleField struct{ Field model.Field }

// SetQuestionCount sets how many questions one request asks for
type SetQuestionCount struct{ Count int }

// SetCondition switches the experiment condition
type SetCondition struct{ Condition model.Condition }

// Reset restores Defaults, or model.DefaultSettings when Defaults is zero
type Reset struct{ Defaults model.Settings }

func (a SetModel) reduce(s model.Settings) model.Settings {
	if a.Model != "" {
		s.Model = a.Model
	}
	return s
}

func (a SetCustomPrompt) reduce(s model.Settings) model.Settings {
	s.CustomPrompt = a.Prompt
	return s
}

func (a ToggleField) reduce(s model.Settings) model.Settings {
	s.Fields = s.Fields.Toggle(a.Field)
	return s
}

func (a SetQuestionCount) reduce(s model.Settings) model.Settings {
	s.QuestionCount = min(max(a.Count, MinQuestionCount), MaxQuestionCount)
	return s
}

func (a SetCondition) reduce(s model.Settings) model.Settings {
	if a.Condition.Valid() {
		s.Condition = a.Condition
	}
	return s
}

func (a Reset) reduce(model.Settings) model.Settings {
	if a.Defaults.Model == "" {
		return model.DefaultSettings()
	}
	return a.Defaults
}

// Reduce applies a to s. It is pure: s is not modified.
func Reduce(s model.Settings, a Action) model.Settings {
	if a == nil {
		return s
	}
	return a.reduce(s)
}

// SettingsMachine owns the user's settings. Every transition goes through
// Dispatch, which reduces and persists under one lock.
type SettingsMachine struct {
	store    store.Store
	logger   *slog.Logger
	onChange func(model.Settings)

	mu     sync.Mutex
	record model.SettingsRecord
}

// NewSettingsMachine starts from rec. onChange may be nil.
func NewSettingsMachine(st store.Store, rec model.SettingsRecord, logger *slog.Logger, onChange func(model.Settings)) *SettingsMachine {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsMachine{store: st, logger: logger, onChange: onChange, record: rec}
}

// Current returns the active settings
func (m *SettingsMachine) Current() model.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record.CurrentSettings
}

// Record returns the persisted form, including history
func (m *SettingsMachine) Record() model.SettingsRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record
	rec.History = append([]model.SettingsChange(nil), m.record.History...)
	return rec
}

// Dispatch applies a and persists the result. A failed save keeps the new
// settings in memory and returns the error.
func (m *SettingsMachine) Dispatch(ctx context.Context, a Action) (model.Settings, error) {
	next, err := m.transition(ctx, a)
	if m.onChange != nil {
		m.onChange(next)
	}
	return next, err
}

func (m *SettingsMachine) transition(ctx context.Context, a Action) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := Reduce(m.record.CurrentSettings, a)
	m.record.CurrentSettings = next

	saved, err := m.store.UpsertSettings(ctx, m.record)
	if err != nil {
		m.logger.Warn("settings not saved", "action", fmt.Sprintf("%T", a), "error", err)
		return next, fmt.Errorf("persist settings: %w", err)
	}
	m.record.ID = saved.ID
	m.record.History = saved.History
	m.record.LastChanged = saved.LastChanged

	m.logger.Debug("settings changed", "action", fmt.Sprintf("%T", a), "settings_id", saved.ID)
	return next, nil
}

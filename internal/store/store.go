// Package store persists figures, descriptions, suggestions, drafts, events
// and settings. HTTPStore talks to the persistence API; MemoryStore applies the
// same upsert rules in process.
package store

import (
	"context"
	"errors"

	"github.com/ppiankov/altwrite/internal/model"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Store is the persistence service used by the engine
type Store interface {
	Figure(ctx context.Context, id int64) (*model.Figure, error)

	// DescriptionByFigure returns the single description of a figure, or ErrNotFound
	DescriptionByFigure(ctx context.Context, figureID int64) (*model.Description, error)
	// UpsertDescription creates the description (matched by id, then by figure)
	// or updates it. Text fields and history only change when both the plain
	// string and the HTML are non-empty.
	UpsertDescription(ctx context.Context, d model.Description) (*model.Description, error)

	UpsertSuggestion(ctx context.Context, s model.Suggestion) (*model.Suggestion, error)
	SuggestionsByDescription(ctx context.Context, descriptionID int64) ([]model.Suggestion, error)

	// UpsertGeneratedDescription matches by id, then by figure and model
	UpsertGeneratedDescription(ctx context.Context, g model.GeneratedDescription) (*model.GeneratedDescription, error)
	GeneratedDescriptionsByFigure(ctx context.Context, figureID int64) ([]model.GeneratedDescription, error)

	AppendEvent(ctx context.Context, e model.Event) error

	UpsertSettings(ctx context.Context, r model.SettingsRecord) (*model.SettingsRecord, error)
	// SettingsByUser returns the most recent settings record of a user, or ErrNotFound
	SettingsByUser(ctx context.Context, userID int64) (*model.SettingsRecord, error)
}

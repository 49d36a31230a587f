package model

import "time"

// EventType classifies an interaction event
type EventType string

const (
	EventKeyPress            EventType = "key_press"
	EventPaste               EventType = "paste_action"
	EventCompletionRequested EventType = "completion_requested"
	EventCompletionInserted  EventType = "completion_inserted"
	EventSuggestionAccepted  EventType = "suggestion_accepted"
	EventSuggestionRejected  EventType = "suggestion_rejected"
	EventQuestionsRequested  EventType = "questions_requested"
	EventDraftGenerated      EventType = "draft_generated"
	EventSubmit              EventType = "submit"
)

// Key labels carried by key_press events
const (
	KeyInput  = "Input"
	KeyDelete = "Backspace or Delete"
)

// Event is an append-only interaction record
type Event struct {
	ID            int64          `json:"id,omitempty"`
	Type          EventType      `json:"event_type"`
	Data          map[string]any `json:"event_data"`
	Time          time.Time      `json:"event_time"`
	UserID        int64          `json:"user_id"`
	FigureID      int64          `json:"figure_id"`
	DescriptionID int64          `json:"description_id"`
	Condition     Condition      `json:"condition"`
	StudySession  bool           `json:"study_session"`
}

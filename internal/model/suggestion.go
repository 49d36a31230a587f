package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrContentMismatch is returned when a suggestion's content shape disagrees with its type
var ErrContentMismatch = errors.New("suggestion content does not match its type")

// SuggestionType tags the Suggestion union
type SuggestionType string

const (
	SuggestionCompletion SuggestionType = "completion" // Inline text continuation
	SuggestionQA         SuggestionType = "qa"         // Clarifying question with suggested answers
)

// SuggestionContent is implemented by the content variants of a Suggestion
type SuggestionContent interface {
	SuggestionType() SuggestionType
}

// CompletionContent is the text of an inline continuation
type CompletionContent struct {
	Text string
}

// SuggestionType implements SuggestionContent
func (CompletionContent) SuggestionType() SuggestionType { return SuggestionCompletion }

// QAContent is a clarifying question plus the answers the model proposed for it
type QAContent struct {
	Question         string   `json:"question"`
	SuggestedAnswers []string `json:"suggested_answer"`
}

// SuggestionType implements SuggestionContent
func (QAContent) SuggestionType() SuggestionType { return SuggestionQA }

// PrimaryAnswer returns the first suggested answer, or "" when there is none
func (q QAContent) PrimaryAnswer() string {
	if len(q.SuggestedAnswers) == 0 {
		return ""
	}
	return q.SuggestedAnswers[0]
}

// UnmarshalJSON accepts suggested_answer as either a list or a single string
func (q *QAContent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Question         *string         `json:"question"`
		SuggestedAnswer  json.RawMessage `json:"suggested_answer"`
		SuggestedAnswers []string        `json:"suggested_answers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrContentMismatch, err)
	}
	if raw.Question == nil {
		return fmt.Errorf("%w: qa content has no question", ErrContentMismatch)
	}
	q.Question = *raw.Question
	q.SuggestedAnswers = raw.SuggestedAnswers

	if len(raw.SuggestedAnswer) > 0 && string(raw.SuggestedAnswer) != "null" {
		var list []string
		if err := json.Unmarshal(raw.SuggestedAnswer, &list); err == nil {
			q.SuggestedAnswers = list
			return nil
		}
		var single string
		if err := json.Unmarshal(raw.SuggestedAnswer, &single); err != nil {
			return fmt.Errorf("%w: suggested_answer must be a string or a list", ErrContentMismatch)
		}
		q.SuggestedAnswers = []string{single}
	}
	return nil
}

// Suggestion is an append-only record of one generated suggestion
type Suggestion struct {
	ID            int64
	Type          SuggestionType
	Content       SuggestionContent
	Model         string
	TextContext   string // Document text at generation time
	StudySession  bool
	Condition     Condition
	UserID        int64
	DescriptionID int64
	CreatedAt     time.Time
}

// NewCompletionSuggestion builds a completion suggestion
func NewCompletionSuggestion(text, modelID, textContext string) Suggestion {
	return Suggestion{
		Type:        SuggestionCompletion,
		Content:     CompletionContent{Text: text},
		Model:       modelID,
		TextContext: textContext,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewQASuggestion builds a question/answer suggestion
func NewQASuggestion(qa QAContent, modelID, textContext string) Suggestion {
	return Suggestion{
		Type:        SuggestionQA,
		Content:     qa,
		Model:       modelID,
		TextContext: textContext,
		CreatedAt:   time.Now().UTC(),
	}
}

// QA returns the question content when the suggestion is of type qa
func (s Suggestion) QA() (QAContent, bool) {
	qa, ok := s.Content.(QAContent)
	return qa, ok && s.Type == SuggestionQA
}

// Validate checks that the content variant matches the tag
func (s Suggestion) Validate() error {
	if s.Content == nil {
		return fmt.Errorf("%w: missing content", ErrContentMismatch)
	}
	if s.Content.SuggestionType() != s.Type {
		return fmt.Errorf("%w: type %q carries %q content", ErrContentMismatch, s.Type, s.Content.SuggestionType())
	}
	if qa, ok := s.Content.(QAContent); ok && strings.TrimSpace(qa.Question) == "" {
		return fmt.Errorf("%w: empty question", ErrContentMismatch)
	}
	return nil
}

type suggestionJSON struct {
	ID            int64           `json:"id,omitempty"`
	Type          SuggestionType  `json:"suggestion_type"`
	Content       json.RawMessage `json:"content"`
	Model         string          `json:"model"`
	TextContext   string          `json:"text_context"`
	StudySession  bool            `json:"study_session"`
	Condition     Condition       `json:"condition,omitempty"`
	UserID        int64           `json:"user_id"`
	DescriptionID int64           `json:"description_id"`
	CreatedAt     time.Time       `json:"created_at,omitzero"`
}

// MarshalJSON encodes completion content as a string and qa content as an object
func (s Suggestion) MarshalJSON() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var content []byte
	var err error
	switch c := s.Content.(type) {
	case CompletionContent:
		content, err = json.Marshal(c.Text)
	case QAContent:
		content, err = json.Marshal(c)
	default:
		return nil, fmt.Errorf("%w: unknown content %T", ErrContentMismatch, s.Content)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	return json.Marshal(suggestionJSON{
		ID:            s.ID,
		Type:          s.Type,
		Content:       content,
		Model:         s.Model,
		TextContext:   s.TextContext,
		StudySession:  s.StudySession,
		Condition:     s.Condition,
		UserID:        s.UserID,
		DescriptionID: s.DescriptionID,
		CreatedAt:     s.CreatedAt,
	})
}

// UnmarshalJSON decodes the tagged union. QA content may arrive as an object
// or as a JSON-encoded string, which is how the store persists dict content.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var raw suggestionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	content, err := decodeContent(raw.Type, raw.Content)
	if err != nil {
		return err
	}

	*s = Suggestion{
		ID:            raw.ID,
		Type:          raw.Type,
		Content:       content,
		Model:         raw.Model,
		TextContext:   raw.TextContext,
		StudySession:  raw.StudySession,
		Condition:     raw.Condition,
		UserID:        raw.UserID,
		DescriptionID: raw.DescriptionID,
		CreatedAt:     raw.CreatedAt,
	}
	return nil
}

func decodeContent(t SuggestionType, raw json.RawMessage) (SuggestionContent, error) {
	var asString string
	isString := json.Unmarshal(raw, &asString) == nil

	switch t {
	case SuggestionCompletion:
		if !isString {
			return nil, fmt.Errorf("%w: completion content must be a string", ErrContentMismatch)
		}
		return CompletionContent{Text: asString}, nil

	case SuggestionQA:
		body := []byte(raw)
		if isString {
			body = []byte(asString)
		}
		var qa QAContent
		if err := json.Unmarshal(body, &qa); err != nil {
			if errors.Is(err, ErrContentMismatch) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrContentMismatch, err)
		}
		return qa, nil

	default:
		return nil, fmt.Errorf("%w: unknown suggestion type %q", ErrContentMismatch, t)
	}
}

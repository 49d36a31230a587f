package model

// Field names a piece of figure metadata that can be fed to the model
type Field string

const (
	FieldCaption   Field = "caption"
	FieldOCRText   Field = "ocr_text"
	FieldMentions  Field = "mentions"
	FieldDataTable Field = "data_table"
)

// Fields lists every toggleable field in prompt order
var Fields = []Field{FieldCaption, FieldOCRText, FieldMentions, FieldDataTable}

// FieldFlags gates which figure metadata fields reach the prompt
type FieldFlags struct {
	Caption   bool `json:"caption" yaml:"caption" mapstructure:"caption"`
	OCRText   bool `json:"ocr_text" yaml:"ocr_text" mapstructure:"ocr_text"`
	Mentions  bool `json:"mentions" yaml:"mentions" mapstructure:"mentions"`
	DataTable bool `json:"data_table" yaml:"data_table" mapstructure:"data_table"`
}

// Enabled reports whether f is switched on
func (ff FieldFlags) Enabled(f Field) bool {
	switch f {
	case FieldCaption:
		return ff.Caption
	case FieldOCRText:
		return ff.OCRText
	case FieldMentions:
		return ff.Mentions
	case FieldDataTable:
		return ff.DataTable
	}
	return false
}

// Toggle flips f and returns the new flags
func (ff FieldFlags) Toggle(f Field) FieldFlags {
	switch f {
	case FieldCaption:
		ff.Caption = !ff.Caption
	case FieldOCRText:
		ff.OCRText = !ff.OCRText
	case FieldMentions:
		ff.Mentions = !ff.Mentions
	case FieldDataTable:
		ff.DataTable = !ff.DataTable
	}
	return ff
}

// Settings are the per-user generation preferences
type Settings struct {
	Model         string     `json:"model" yaml:"model" mapstructure:"model"`
	CustomPrompt  string     `json:"custom_prompt,omitempty" yaml:"custom_prompt" mapstructure:"custom_prompt"`
	Fields        FieldFlags `json:"fields" yaml:"fields" mapstructure:"fields"`
	QuestionCount int        `json:"question_count" yaml:"question_count" mapstructure:"question_count"`
	Condition     Condition  `json:"condition" yaml:"condition" mapstructure:"condition"`
}

// DefaultSettings enables every field and asks three questions per request
func DefaultSettings() Settings {
	return Settings{
		Model:         "gpt-4o-mini",
		Fields:        FieldFlags{Caption: true, OCRText: true, Mentions: true, DataTable: true},
		QuestionCount: 3,
		Condition:     ConditionFull,
	}
}

// SettingsRecord is the persisted form of Settings with its change history
type SettingsRecord struct {
	ID              int64            `json:"id,omitempty"`
	CurrentSettings Settings         `json:"current_settings"`
	History         []SettingsChange `json:"history,omitempty"`
	LastChanged     string           `json:"last_changed,omitempty"` // HTTP date, set by the store
	StudySession    bool             `json:"study_session"`
	UserID          int64            `json:"user_id"`
	FigureID        int64            `json:"figure_id,omitempty"`
}

// SettingsChange is a superseded Settings value and when it was replaced
type SettingsChange struct {
	Timestamp string   `json:"timestamp"` // ISO-8601, as written by the store
	Settings  Settings `json:"settings"`
}

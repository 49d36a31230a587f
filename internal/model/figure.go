package model

// Figure is an extracted image plus the metadata used to prompt generation
type Figure struct {
	ID                 int64     `json:"id"`
	PaperID            int64     `json:"paper_id,omitempty"`
	UserID             int64     `json:"user_id,omitempty"`
	Filename           string    `json:"filename,omitempty"`
	FigureType         string    `json:"figure_type,omitempty"`
	Caption            string    `json:"caption,omitempty"`
	OCRText            string    `json:"ocr_text,omitempty"`
	MentionsParagraphs string    `json:"mentions_paragraphs,omitempty"`
	DataTable          string    `json:"data_table,omitempty"`
	StudySession       bool      `json:"study_session"`
	Condition          Condition `json:"condition,omitempty"`
}

// Description is the persisted alt-text record for a figure (one per figure)
type Description struct {
	ID                int64          `json:"id,omitempty"`
	CurrentString     string         `json:"current_string"`
	CurrentHTML       string         `json:"current_html"`
	SummarizedVersion string         `json:"summarized_version,omitempty"`
	History           []HistoryEntry `json:"history,omitempty"`
	StudySession      bool           `json:"study_session"`
	Condition         Condition      `json:"condition,omitempty"`
	UserID            int64          `json:"user_id"`
	FigureID          int64          `json:"figure_id"`
	PaperID           int64          `json:"paper_id"`
}

// HistoryEntry is one saved revision of a description
type HistoryEntry struct {
	CurrentString string `json:"current_string"`
	CurrentHTML   string `json:"current_html"`
}

// Initialized reports whether the description has a persisted identity
func (d *Description) Initialized() bool {
	return d != nil && d.ID != 0
}

// GeneratedDescription is a full draft alt-text option for a figure, keyed by figure + model
type GeneratedDescription struct {
	ID          int64  `json:"id,omitempty"`
	Description string `json:"description"`
	Model       string `json:"model"`
	FigureID    int64  `json:"figure_id"`
}

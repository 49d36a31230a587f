package llm

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/ppiankov/altwrite/internal/model"
)

// SuggestQuestionName is the function the model calls to propose one clarifying question
const SuggestQuestionName = "suggest_question"

const systemPrompt = `You help authors write alt-text for figures in scientific papers.
Good alt-text states the figure type, the variables shown, and the main trend or takeaway in plain language.
Never invent values that are not present in the figure context.`

// SystemPrompt returns the default system prompt, extended by the user's custom prompt
func SystemPrompt(custom string) string {
	custom = strings.TrimSpace(custom)
	if custom == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\nAdditional instructions from the author:\n" + custom
}

// FigureContext renders the figure metadata enabled by flags
func FigureContext(fig model.Figure, flags model.FieldFlags) string {
	var b strings.Builder
	if fig.FigureType != "" {
		fmt.Fprintf(&b, "Figure type: %s\n", fig.FigureType)
	}
	for _, f := range model.Fields {
		if !flags.Enabled(f) {
			continue
		}
		var label, value string
		switch f {
		case model.FieldCaption:
			label, value = "Caption", fig.Caption
		case model.FieldOCRText:
			label, value = "Text recognized in the figure", fig.OCRText
		case model.FieldMentions:
			label, value = "Paragraphs mentioning the figure", fig.MentionsParagraphs
		case model.FieldDataTable:
			label, value = "Extracted data table", fig.DataTable
		}
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s:\n%s\n\n", label, truncate(value, 4000))
		}
	}
	if b.Len() == 0 {
		return "(No figure context available)"
	}
	return strings.TrimSpace(b.String())
}

// BuildContinuationPrompt asks for the next sentence after textBefore
func BuildContinuationPrompt(fig model.Figure, flags model.FieldFlags, textBefore, textAfter string) string {
	prompt := fmt.Sprintf(`Figure context:
%s

The author has written this alt-text so far:
"""
%s
"""
`, FigureContext(fig, flags), textBefore)

	if strings.TrimSpace(textAfter) != "" {
		prompt += fmt.Sprintf(`
It continues after the cursor with:
"""
%s
"""
`, textAfter)
	}

	prompt += "\nWrite the next sentence only. Do not repeat text the author already wrote."
	return prompt
}

// BuildDraftPrompt asks for a complete alt-text from scratch
func BuildDraftPrompt(fig model.Figure, flags model.FieldFlags) string {
	return fmt.Sprintf(`Figure context:
%s

Write a complete alt-text description of this figure in 2-4 sentences.`, FigureContext(fig, flags))
}

// BuildQuestionPrompt asks for one clarifying question about what the alt-text still lacks
func BuildQuestionPrompt(fig model.Figure, flags model.FieldFlags, text string, round, total int) string {
	return fmt.Sprintf(`Figure context:
%s

Current alt-text:
"""
%s
"""

Ask question %d of %d: one question whose answer would make the alt-text more complete, with suggested answers drawn from the figure context.
Call %s exactly once. Do not repeat a question you already asked in this conversation.
If nothing important is missing, reply in plain text instead.`,
		FigureContext(fig, flags), text, round, total, SuggestQuestionName)
}

// SuggestQuestionFunction is the callable schema for one question/answer record
func SuggestQuestionFunction() Function {
	return Function{
		Name:        SuggestQuestionName,
		Description: "Propose one clarifying question about the figure with suggested answers",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"question": {
					Type:        jsonschema.String,
					Description: "A question whose answer would improve the alt-text",
				},
				"suggested_answer": {
					Type:        jsonschema.Array,
					Description: "Candidate answers, best first",
					Items:       &jsonschema.Definition{Type: jsonschema.String},
				},
			},
			Required: []string{"question", "suggested_answer"},
		},
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

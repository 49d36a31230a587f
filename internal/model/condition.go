package model

// Condition is the experiment-arm label controlling which assistance features are active
type Condition string

const (
	ConditionFull       Condition = "full"       // Every assistance feature
	ConditionCompletion Condition = "completion" // Inline continuations only
	ConditionQA         Condition = "qa"         // Clarifying questions only
	ConditionBaseline   Condition = "baseline"   // Plain editor, no generation
)

// Valid reports whether c is a known condition
func (c Condition) Valid() bool {
	switch c {
	case ConditionFull, ConditionCompletion, ConditionQA, ConditionBaseline:
		return true
	}
	return false
}

// DefaultCondition returns the condition a session starts in.
// Study sessions use the configured study arm; everything else gets the full feature set.
func DefaultCondition(studySession bool, studyCondition Condition) Condition {
	if studySession && studyCondition.Valid() {
		return studyCondition
	}
	return ConditionFull
}

// Affordances lists which generation flows a session may trigger
type Affordances struct {
	Completion bool
	Questions  bool
	Drafts     bool
}

// AffordancesFor derives the enabled flows from the condition and study flag.
// Draft options are only offered inside study sessions.
func AffordancesFor(c Condition, studySession bool) Affordances {
	a := Affordances{Drafts: studySession}
	switch c {
	case ConditionFull:
		a.Completion = true
		a.Questions = true
	case ConditionCompletion:
		a.Completion = true
	case ConditionQA:
		a.Questions = true
	case ConditionBaseline:
		a.Drafts = false
	}
	return a
}

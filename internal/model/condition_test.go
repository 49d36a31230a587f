package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCondition(t *testing.T) {
	assert.Equal(t, ConditionFull, DefaultCondition(false, ConditionQA))
	assert.Equal(t, ConditionQA, DefaultCondition(true, ConditionQA))
	assert.Equal(t, ConditionFull, DefaultCondition(true, "unknown"))
}

func TestAffordancesFor(t *testing.T) {
	tests := []struct {
		condition Condition
		study     bool
		want      Affordances
	}{
		{ConditionFull, false, Affordances{Completion: true, Questions: true}},
		{ConditionFull, true, Affordances{Completion: true, Questions: true, Drafts: true}},
		{ConditionCompletion, true, Affordances{Completion: true, Drafts: true}},
		{ConditionQA, false, Affordances{Questions: true}},
		{ConditionBaseline, true, Affordances{}},
		{"unknown", false, Affordances{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.condition), func(t *testing.T) {
			assert.Equal(t, tt.want, AffordancesFor(tt.condition, tt.study))
		})
	}
}

func TestFieldFlags_Toggle(t *testing.T) {
	ff := DefaultSettings().Fields
	for _, f := range Fields {
		assert.True(t, ff.Enabled(f))
		assert.False(t, ff.Toggle(f).Enabled(f))
	}
	assert.False(t, ff.Enabled("unknown"))
	assert.Equal(t, ff, ff.Toggle("unknown"))
}

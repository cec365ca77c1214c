package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDispatchesOnRawWordCount(t *testing.T) {
	tests := []struct {
		query string
		mode  Mode
		terms []string
	}{
		{"diabetes", ModeOneWord, []string{"diabetes"}},
		{"  Diabetes  ", ModeOneWord, []string{"diabetes"}},
		{"cat!!", ModeOneWord, []string{"cat"}},
		{"cat-dog", ModeOneWord, []string{"cat", "dog"}},
		{"cat dog", ModeFreeText, []string{"cat", "dog"}},
		{"diabetes\thypertension", ModeFreeText, []string{"diabetes", "hypertension"}},
		{"!! ??", ModeFreeText, []string{}},
		{"", ModeOneWord, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			plan := Parse(tt.query)
			assert.Equal(t, tt.query, plan.RawQuery)
			assert.Equal(t, tt.mode, plan.Mode)
			assert.Equal(t, tt.terms, plan.Terms)
			assert.Equal(t, len(tt.terms) == 0, plan.Empty())
		})
	}
}

func TestModeJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Mode Mode `json:"mode"`
	}{ModeFreeText})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"free_text"}`, string(data))

	var out struct {
		Mode Mode `json:"mode"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, ModeFreeText, out.Mode)
}

package rag

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ragchat/backend/internal/infrastructure/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryAnalyzer_SmallTalkSkipsModel(t *testing.T) {
	chatModel := &scriptedModel{}
	analyzer := NewQueryAnalyzer(newTestRegistry(chatModel))

	for _, msg := range []string{"Hi, how are you?", "hello", "Thanks a lot!", "Good morning"} {
		t.Run(msg, func(t *testing.T) {
			result := analyzer.Analyze(context.Background(), msg)
			assert.False(t, result.NeedsSearch)
			assert.Empty(t, result.OptimizedQuery)
		})
	}
	assert.Equal(t, 0, chatModel.generateCalls())
}

func TestQueryAnalyzer_UsesModelDecision(t *testing.T) {
	chatModel := &scriptedModel{structured: []string{
		`{"needsSearch": true, "reason": "asks about the contract", "confidence": 1.4, "optimizedQuery": "payment terms deadlines"}`,
	}}
	analyzer := NewQueryAnalyzer(newTestRegistry(chatModel))

	result := analyzer.Analyze(context.Background(), "What does the contract say about payment terms?")
	assert.True(t, result.NeedsSearch)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, "payment terms deadlines", result.OptimizedQuery)
	assert.Equal(t, "payment terms deadlines", result.SearchQuery("original"))

	require.Len(t, chatModel.prompts, 1)
	assert.Contains(t, chatModel.prompts[0], `User query: "What does the contract say about payment terms?"`)

	require.Len(t, chatModel.toolInfos, 1)
	assert.Equal(t, analysisToolName, chatModel.toolInfos[0].Name)
	params, err := chatModel.toolInfos[0].ParamsOneOf.ToJSONSchema()
	require.NoError(t, err)
	for _, field := range []string{"needsSearch", "reason", "confidence", "optimizedQuery"} {
		_, ok := params.Properties.Get(field)
		assert.True(t, ok, field)
	}

	require.Len(t, chatModel.options, 1)
	require.NotNil(t, chatModel.options[0].ToolChoice)
	assert.Equal(t, schema.ToolChoiceForced, *chatModel.options[0].ToolChoice)
}

func TestQueryAnalyzer_FailsOpen(t *testing.T) {
	tests := []struct {
		name     string
		registry *llm.ModelRegistry
	}{
		{"model error", newTestRegistry(&scriptedModel{err: assert.AnError})},
		{"no tool call", newTestRegistry(&scriptedModel{generate: []string{"I think you should search."}})},
		{"invalid arguments", newTestRegistry(&scriptedModel{structured: []string{"{needsSearch: yes"}})},
		{"no model configured", llm.NewRegistryWithModels("", "", map[string]model.ToolCallingChatModel{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewQueryAnalyzer(tt.registry).Analyze(context.Background(), "Summarize the quarterly report")
			assert.True(t, result.NeedsSearch)
			assert.Equal(t, 0.5, result.Confidence)
			assert.Equal(t, "Error in analysis, defaulting to search", result.Reason)
			assert.Equal(t, "Summarize the quarterly report", result.SearchQuery("Summarize the quarterly report"))
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	result, err := parseAnalysis(`{"needsSearch": false, "reason": "general question", "confidence": -0.2, "optimizedQuery": "ignored"}`)
	require.NoError(t, err)
	assert.False(t, result.NeedsSearch)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Empty(t, result.OptimizedQuery)

	_, err = parseAnalysis("not json")
	assert.Error(t, err)
}

func TestIsSmallTalk(t *testing.T) {
	tests := []struct {
		message string
		want    bool
	}{
		{"Hi, how are you?", true},
		{"hey there", true},
		{"What does the document say?", false},
		{"hi can you summarize the uploaded file", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, isSmallTalk(tt.message))
		})
	}
}

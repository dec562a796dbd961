package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleFromMessage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{"empty message", "", "New Chat"},
		{"blank message", "   \n\t", "New Chat"},
		{"short message", "hello", "hello"},
		{"trimmed", "  hello  ", "hello"},
		{"exactly fifty", strings.Repeat("a", 50), strings.Repeat("a", 50)},
		{"long message", strings.Repeat("b", 80), strings.Repeat("b", 50)},
		{"multibyte", strings.Repeat("你", 60), strings.Repeat("你", 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TitleFromMessage(tt.message))
		})
	}
}

func TestNewConversation(t *testing.T) {
	conv := NewConversation("conv-1", "owner-1", "What is in my report?")

	assert.Equal(t, "conv-1", conv.ID)
	assert.Equal(t, "owner-1", conv.OwnerID)
	assert.Equal(t, "What is in my report?", conv.Title)
	assert.Equal(t, 0, conv.Memory.SummaryVersion)
	assert.Equal(t, 0, conv.Memory.LastSummarizedMessageIndex)
	assert.Empty(t, conv.Memory.Summary)
}

package opencrab

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleConstants(t *testing.T) {
	assert.Equal(t, Role("user"), RoleUser)
	assert.Equal(t, Role("assistant"), RoleAssistant)
	assert.Equal(t, Role("system"), RoleSystem)
	assert.Equal(t, Role("tool"), RoleTool)
}

func TestGenerateMessageID(t *testing.T) {
	id1 := GenerateMessageID()
	id2 := GenerateMessageID()

	assert.True(t, strings.HasPrefix(id1, "msg-"))
	assert.NotEqual(t, id1, id2)
}

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello")

	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "hello", msg.Content)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestNewToolResultMessage(t *testing.T) {
	results := []ToolResult{
		{ToolCallID: "call-1", Content: "ok"},
		{ToolCallID: "call-2", Content: "denied", IsError: true},
	}

	msg := NewToolResultMessage(results...)

	assert.Equal(t, RoleTool, msg.Role)
	assert.Empty(t, msg.Content)
	assert.Equal(t, results, msg.ToolResults)
}

func TestUsageAdd(t *testing.T) {
	var total Usage
	total.Add(Usage{InputTokens: 10, OutputTokens: 20})
	total.Add(Usage{InputTokens: 5, OutputTokens: 7})

	assert.Equal(t, 15, total.InputTokens)
	assert.Equal(t, 27, total.OutputTokens)
}

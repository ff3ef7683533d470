package google

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	ai "github.com/adolfousier/opencrab"
)

func convertMessages(messages []ai.Message) []*genai.Content {
	var contents []*genai.Content

	for _, msg := range messages {
		role := "user"
		switch msg.Role {
		case ai.RoleUser:
			role = "user"
		case ai.RoleAssistant:
			role = "model"
		case ai.RoleSystem:
			// System prompts go through SystemInstruction; anything left in
			// the history is carried as user context.
			role = "user"
		case ai.RoleTool:
			// Tool results travel as user messages with FunctionResponse parts.
			role = "user"
		}

		var parts []*genai.Part
		if msg.Content != "" {
			parts = append(parts, &genai.Part{Text: msg.Content})
		}

		for _, tc := range msg.ToolCalls {
			var args map[string]any
			json.Unmarshal([]byte(tc.Arguments), &args)
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					Name: tc.Name,
					Args: args,
				},
			})
		}

		for _, tr := range msg.ToolResults {
			var result map[string]any
			if err := json.Unmarshal([]byte(tr.Content), &result); err != nil {
				result = map[string]any{"result": tr.Content}
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     functionNameFromCallID(tr.ToolCallID),
					Response: result,
				},
			})
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: parts,
			})
		}
	}

	return contents
}

// functionNameFromCallID recovers the function name from a synthetic call ID
// of the form "call_<n>_<name>". Gemini matches responses by name, not ID.
func functionNameFromCallID(id string) string {
	trimmed := strings.TrimPrefix(id, "call_")
	if i := strings.Index(trimmed, "_"); i >= 0 {
		return trimmed[i+1:]
	}
	return id
}

// BlockedError indicates the request was blocked by content filtering.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request blocked: %s", e.Reason)
}

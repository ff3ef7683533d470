package opencrab

import "encoding/json"

// Capability tags what a tool is able to do. Capabilities drive the danger
// classification used by the approval workflow.
type Capability string

const (
	// CapabilityReadOnly marks tools that only inspect state.
	CapabilityReadOnly Capability = "read_only"
	// CapabilityFileMutation marks tools that create, modify, or delete files.
	CapabilityFileMutation Capability = "file_mutation"
	// CapabilityCommandExecution marks tools that spawn processes.
	CapabilityCommandExecution Capability = "command_execution"
	// CapabilityNetworkEgress marks tools that leave the local environment.
	CapabilityNetworkEgress Capability = "network_egress"
	// CapabilitySystemModification marks tools that alter system configuration.
	CapabilitySystemModification Capability = "system_modification"
)

// Dangerous reports whether the capability can mutate state or leave the
// local environment.
func (c Capability) Dangerous() bool {
	switch c {
	case CapabilityFileMutation, CapabilityCommandExecution,
		CapabilityNetworkEgress, CapabilitySystemModification:
		return true
	}
	return false
}

// Tool defines a function that can be called by the model.
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string
	// Description explains what the tool does (helps the model decide when to use it).
	Description string
	// Parameters is a JSON Schema object defining the function parameters.
	Parameters json.RawMessage
	// Capabilities tags the tool for danger classification.
	Capabilities []Capability
}

// Dangerous reports whether any of the tool's capabilities is dangerous.
// Dangerous tools require human approval before execution.
func (t Tool) Dangerous() bool {
	for _, c := range t.Capabilities {
		if c.Dangerous() {
			return true
		}
	}
	return false
}

// ToolCall represents a request from the model to invoke a tool.
// It is created when the provider's stream completes a tool-call block and
// is consumed exactly once by the orchestrator.
type ToolCall struct {
	// ID is a unique identifier for this tool call (used to match results).
	ID string `json:"id"`
	// Name is the name of the tool to invoke.
	Name string `json:"name"`
	// Arguments is a JSON string containing the arguments to pass.
	Arguments string `json:"arguments"`
}

// ToolResult represents the result of executing a tool call, or the refusal
// context when a call was denied.
type ToolResult struct {
	// ToolCallID matches the ID from the corresponding ToolCall.
	ToolCallID string `json:"toolCallId"`
	// Content is the result content to return to the model.
	Content string `json:"content"`
	// IsError indicates if the result represents an error or a refusal.
	IsError bool `json:"isError,omitempty"`
}

// ToolChoice controls how the model uses tools.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide when to use tools (default).
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone disables tool use for the request.
	ToolChoiceNone ToolChoice = "none"
	// ToolChoiceRequired forces the model to use a tool.
	ToolChoiceRequired ToolChoice = "required"
)

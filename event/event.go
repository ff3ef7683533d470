// Package event provides the push boundary between the orchestration core
// and any presentation layer. Every observable occurrence during a turn
// (streamed text, tool invocations, approval lifecycle, plan and task
// status changes, errors) is delivered as an Event on a channel in real
// time.
package event

import (
	"time"

	ai "github.com/adolfousier/opencrab"
)

// Type identifies the kind of event.
type Type string

// Turn lifecycle events
const (
	// TurnStart fires when processing of a user message begins.
	TurnStart Type = "turn_start"

	// TurnEnd fires when the turn completes (the provider emitted a final,
	// non-tool-call response).
	TurnEnd Type = "turn_end"

	// TurnError fires when an unrecoverable error ends the turn. Previously
	// appended messages are never rolled back.
	TurnError Type = "turn_error"
)

// Message lifecycle events
const (
	// MessageStart fires when an assistant message begins streaming.
	MessageStart Type = "message_start"

	// MessageDelta fires for each streamed text chunk.
	MessageDelta Type = "message_delta"

	// MessageEnd fires when an assistant message completes.
	MessageEnd Type = "message_end"
)

// Tool lifecycle events
const (
	// ToolCallRequested fires when the model requests a tool call.
	ToolCallRequested Type = "tool_call_requested"

	// ToolInvoked fires when a tool handler starts executing.
	ToolInvoked Type = "tool_invoked"

	// ToolResult fires with the tool execution result (success or error).
	ToolResult Type = "tool_result"
)

// Approval lifecycle events
const (
	// ApprovalRequested fires when a dangerous tool call awaits a decision.
	ApprovalRequested Type = "approval_requested"

	// ApprovalResolved fires when an approval request reaches a terminal
	// decision (approved, denied, or timed out).
	ApprovalResolved Type = "approval_resolved"
)

// Plan lifecycle events
const (
	// PlanStatusChanged fires on every plan state transition.
	PlanStatusChanged Type = "plan_status_changed"

	// TaskStatusChanged fires on every task state transition.
	TaskStatusChanged Type = "task_status_changed"
)

// Accounting events
const (
	// UsageUpdated fires when the session cost accumulator changes.
	UsageUpdated Type = "usage_updated"

	// CostError fires when persisting the session cost accumulator fails.
	// The turn continues; Usage carries the unrecorded amount.
	CostError Type = "cost_error"
)

// Event represents an observable occurrence during turn execution.
type Event struct {
	// Type identifies the kind of event.
	Type Type

	// MessageID identifies the message for Start/Delta/End correlation.
	MessageID string

	// Delta contains streamed text for MessageDelta events.
	Delta string

	// Iteration is the turn's tool-call round number (1-indexed).
	Iteration int

	// ToolCall contains the tool call for tool-related events.
	ToolCall *ai.ToolCall

	// ToolResult contains the result for ToolResult events.
	ToolResult *ai.ToolResult

	// Elapsed is the tool execution duration for ToolResult events.
	Elapsed time.Duration

	// ApprovalID identifies the approval request for approval events.
	ApprovalID string

	// Decision carries the terminal decision for ApprovalResolved events.
	Decision string

	// PlanID and PlanStatus are set on PlanStatusChanged events.
	PlanID     string
	PlanStatus string

	// TaskID and TaskStatus are set on TaskStatusChanged events.
	TaskID     string
	TaskStatus string

	// Response contains the completed response for MessageEnd and TurnEnd.
	Response *ai.Response

	// Usage carries accumulated usage for UsageUpdated events.
	Usage *ai.Usage

	// Error contains the error for TurnError events.
	Error error

	// Message contains additional context (e.g. refusal reason, credential
	// source name, termination reason).
	Message string

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Emit sends an event with timestamp to the channel without blocking.
// A slow or absent consumer drops events rather than stalling the turn loop.
func Emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	e.Timestamp = time.Now()
	select {
	case ch <- e:
	default:
	}
}

// NewChannel creates a buffered event channel with standard capacity.
func NewChannel() chan Event {
	return make(chan Event, 100)
}

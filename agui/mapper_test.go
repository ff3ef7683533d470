package agui

import (
	"errors"
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	ai "github.com/adolfousier/opencrab"
	"github.com/adolfousier/opencrab/event"
)

func TestNewMapper(t *testing.T) {
	t.Run("with provided IDs", func(t *testing.T) {
		m := NewMapper("thread-123", "run-456")
		if m.ThreadID() != "thread-123" {
			t.Errorf("expected thread ID 'thread-123', got %q", m.ThreadID())
		}
		if m.RunID() != "run-456" {
			t.Errorf("expected run ID 'run-456', got %q", m.RunID())
		}
	})

	t.Run("generates IDs when empty", func(t *testing.T) {
		m := NewMapper("", "")
		if m.ThreadID() == "" {
			t.Error("expected generated thread ID, got empty")
		}
		if m.RunID() == "" {
			t.Error("expected generated run ID, got empty")
		}
	})
}

func mapOne(t *testing.T, m *Mapper, e event.Event) events.Event {
	t.Helper()
	result := m.MapEvent(e)
	if len(result) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(result))
	}
	return result[0]
}

func TestMapEventTurnLifecycle(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	t.Run("TurnStart maps to RUN_STARTED", func(t *testing.T) {
		ev := mapOne(t, m, event.Event{Type: event.TurnStart})
		if ev.Type() != events.EventTypeRunStarted {
			t.Errorf("expected RUN_STARTED, got %s", ev.Type())
		}
	})

	t.Run("TurnEnd maps to RUN_FINISHED", func(t *testing.T) {
		ev := mapOne(t, m, event.Event{Type: event.TurnEnd})
		if ev.Type() != events.EventTypeRunFinished {
			t.Errorf("expected RUN_FINISHED, got %s", ev.Type())
		}
	})

	t.Run("TurnError maps to RUN_ERROR", func(t *testing.T) {
		ev := mapOne(t, m, event.Event{Type: event.TurnError, Error: errors.New("boom")})
		if ev.Type() != events.EventTypeRunError {
			t.Errorf("expected RUN_ERROR, got %s", ev.Type())
		}
	})
}

func TestMapEventMessageLifecycle(t *testing.T) {
	m := NewMapper("thread-1", "run-1")

	t.Run("MessageStart", func(t *testing.T) {
		ev := mapOne(t, m, event.Event{Type: event.MessageStart, MessageID: "msg-1"})
		if ev.Type() != events.EventTypeTextMessageStart {
			t.Errorf("expected TEXT_MESSAGE_START, got %s", ev.Type())
		}
	})

	t.Run("MessageDelta", func(t *testing.T) {
		ev := mapOne(t, m, event.Event{Type: event.MessageDelta, MessageID: "msg-1", Delta: "hi"})
		if ev.Type() != events.EventTypeTextMessageContent {
			t.Errorf("expected TEXT_MESSAGE_CONTENT, got %s", ev.Type())
		}
	})

	t.Run("empty delta is dropped", func(t *testing.T) {
		result := m.MapEvent(event.Event{Type: event.MessageDelta, MessageID: "msg-1"})
		if len(result) != 0 {
			t.Errorf("expected no events for empty delta, got %d", len(result))
		}
	})

	t.Run("MessageEnd", func(t *testing.T) {
		ev := mapOne(t, m, event.Event{Type: event.MessageEnd, MessageID: "msg-1"})
		if ev.Type() != events.EventTypeTextMessageEnd {
			t.Errorf("expected TEXT_MESSAGE_END, got %s", ev.Type())
		}
	})
}

func TestMapEventToolCalls(t *testing.T) {
	m := NewMapper("thread-1", "run-1")
	call := &ai.ToolCall{ID: "call-1", Name: "echo", Arguments: `{"text":"hi"}`}

	t.Run("ToolCallRequested expands to start and args", func(t *testing.T) {
		result := m.MapEvent(event.Event{Type: event.ToolCallRequested, ToolCall: call})
		if len(result) != 2 {
			t.Fatalf("expected 2 events, got %d", len(result))
		}
		if result[0].Type() != events.EventTypeToolCallStart {
			t.Errorf("expected TOOL_CALL_START, got %s", result[0].Type())
		}
		if result[1].Type() != events.EventTypeToolCallArgs {
			t.Errorf("expected TOOL_CALL_ARGS, got %s", result[1].Type())
		}
	})

	t.Run("ToolResult expands to end and result", func(t *testing.T) {
		result := m.MapEvent(event.Event{
			Type:       event.ToolResult,
			ToolCall:   call,
			ToolResult: &ai.ToolResult{ToolCallID: "call-1", Content: "hi"},
		})
		if len(result) != 2 {
			t.Fatalf("expected 2 events, got %d", len(result))
		}
		if result[0].Type() != events.EventTypeToolCallEnd {
			t.Errorf("expected TOOL_CALL_END, got %s", result[0].Type())
		}
		if result[1].Type() != events.EventTypeToolCallResult {
			t.Errorf("expected TOOL_CALL_RESULT, got %s", result[1].Type())
		}
	})

	t.Run("nil tool call yields nothing", func(t *testing.T) {
		result := m.MapEvent(event.Event{Type: event.ToolCallRequested})
		if len(result) != 0 {
			t.Errorf("expected no events, got %d", len(result))
		}
	})
}

func TestMapEventNoEquivalent(t *testing.T) {
	m := NewMapper("thread-1", "run-1")
	for _, typ := range []event.Type{
		event.ApprovalRequested,
		event.ApprovalResolved,
		event.PlanStatusChanged,
		event.TaskStatusChanged,
		event.UsageUpdated,
		event.ToolInvoked,
	} {
		if result := m.MapEvent(event.Event{Type: typ}); len(result) != 0 {
			t.Errorf("expected no mapping for %s, got %d events", typ, len(result))
		}
	}
}

func TestMessageRoundTrip(t *testing.T) {
	original := []ai.Message{
		{ID: "m1", Role: ai.RoleUser, Content: "hello"},
		{
			ID:      "m2",
			Role:    ai.RoleAssistant,
			Content: "let me check",
			ToolCalls: []ai.ToolCall{
				{ID: "call-1", Name: "search", Arguments: `{"q":"x"}`},
			},
		},
		{
			ID:   "m3",
			Role: ai.RoleTool,
			ToolResults: []ai.ToolResult{
				{ToolCallID: "call-1", Content: "result text"},
			},
		},
	}

	converted := ToMessages(FromMessages(original))
	if len(converted) != len(original) {
		t.Fatalf("expected %d messages, got %d", len(original), len(converted))
	}

	if converted[0].Role != ai.RoleUser || converted[0].Content != "hello" {
		t.Errorf("user message mangled: %+v", converted[0])
	}

	if len(converted[1].ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(converted[1].ToolCalls))
	}
	if converted[1].ToolCalls[0].Name != "search" {
		t.Errorf("expected tool call name 'search', got %q", converted[1].ToolCalls[0].Name)
	}

	if len(converted[2].ToolResults) != 1 {
		t.Fatalf("expected 1 tool result, got %d", len(converted[2].ToolResults))
	}
	if converted[2].ToolResults[0].ToolCallID != "call-1" {
		t.Errorf("tool result lost its call ID: %+v", converted[2].ToolResults[0])
	}
}

package agui

import (
	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/adolfousier/opencrab/event"
)

// Mapper converts turn events to AG-UI events. Most turn events map to one
// AG-UI event; tool calls expand to the protocol's Start-Args and
// End-Result pairs.
type Mapper struct {
	threadID string
	runID    string
}

// NewMapper creates a Mapper for a single turn. Empty IDs are generated.
func NewMapper(threadID, runID string) *Mapper {
	if threadID == "" {
		threadID = events.GenerateThreadID()
	}
	if runID == "" {
		runID = events.GenerateRunID()
	}
	return &Mapper{
		threadID: threadID,
		runID:    runID,
	}
}

// ThreadID returns the thread ID for this mapper.
func (m *Mapper) ThreadID() string {
	return m.threadID
}

// RunID returns the run ID for this mapper.
func (m *Mapper) RunID() string {
	return m.runID
}

// MapEvent converts one turn event to its AG-UI representation. Events with
// no AG-UI equivalent (approval lifecycle, plan transitions, usage updates)
// yield nothing; frontends consume those through their own side channel.
func (m *Mapper) MapEvent(e event.Event) []events.Event {
	switch e.Type {
	case event.TurnStart:
		return []events.Event{events.NewRunStartedEvent(m.threadID, m.runID)}
	case event.TurnEnd:
		return []events.Event{events.NewRunFinishedEvent(m.threadID, m.runID)}
	case event.TurnError:
		msg := "unknown error"
		if e.Error != nil {
			msg = e.Error.Error()
		}
		return []events.Event{events.NewRunErrorEvent(msg)}

	case event.MessageStart:
		return []events.Event{events.NewTextMessageStartEvent(
			e.MessageID,
			events.WithRole(RoleAssistant),
		)}
	case event.MessageDelta:
		if e.Delta == "" {
			return nil
		}
		return []events.Event{events.NewTextMessageContentEvent(e.MessageID, e.Delta)}
	case event.MessageEnd:
		return []events.Event{events.NewTextMessageEndEvent(e.MessageID)}

	case event.ToolCallRequested:
		if e.ToolCall == nil {
			return nil
		}
		return []events.Event{
			events.NewToolCallStartEvent(e.ToolCall.ID, e.ToolCall.Name),
			events.NewToolCallArgsEvent(e.ToolCall.ID, e.ToolCall.Arguments),
		}
	case event.ToolResult:
		if e.ToolCall == nil || e.ToolResult == nil {
			return nil
		}
		messageID := events.GenerateMessageID()
		return []events.Event{
			events.NewToolCallEndEvent(e.ToolCall.ID),
			events.NewToolCallResultEvent(messageID, e.ToolCall.ID, e.ToolResult.Content),
		}

	default:
		return nil
	}
}

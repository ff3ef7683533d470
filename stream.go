package opencrab

// StreamEventKind identifies one unit of a provider's incremental response.
type StreamEventKind string

const (
	// StreamTextDelta carries an incremental chunk of assistant text.
	StreamTextDelta StreamEventKind = "text_delta"

	// StreamToolCallStart announces a tool call block (id and name known,
	// arguments still streaming).
	StreamToolCallStart StreamEventKind = "tool_call_start"

	// StreamToolCallInputDelta carries a partial-JSON fragment of a tool
	// call's arguments.
	StreamToolCallInputDelta StreamEventKind = "tool_call_input_delta"

	// StreamToolCallEnd marks a tool call's arguments as complete. The
	// consumer may act on it before StreamDone arrives.
	StreamToolCallEnd StreamEventKind = "tool_call_end"

	// StreamUsage reports token usage observed so far.
	StreamUsage StreamEventKind = "usage"

	// StreamError reports a fatal error for this call. No further events
	// follow except channel close.
	StreamError StreamEventKind = "error"

	// StreamDone is the final event of a successful stream and carries the
	// accumulated Response.
	StreamDone StreamEventKind = "done"
)

// StreamEvent represents a single event in a streaming response. The stream
// is a finite, single-pass sequence delivered on a channel; it is not
// restartable.
type StreamEvent struct {
	Kind StreamEventKind

	// Delta contains incremental text for StreamTextDelta, or a partial-JSON
	// arguments fragment for StreamToolCallInputDelta.
	Delta string

	// ToolCallID correlates StreamToolCallStart, StreamToolCallInputDelta,
	// and StreamToolCallEnd events.
	ToolCallID string

	// ToolName is set on StreamToolCallStart.
	ToolName string

	// ToolCall carries the completed call on StreamToolCallEnd.
	ToolCall *ToolCall

	// Usage is set on StreamUsage events.
	Usage *Usage

	// Response contains the final accumulated response on StreamDone.
	Response *Response

	// Err is set on StreamError events.
	Err error
}

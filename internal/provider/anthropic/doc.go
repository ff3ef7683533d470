// Package anthropic adapts the Anthropic Messages API to the ChatProvider
// interface. Streaming maps content_block_start/delta/stop events for
// tool_use blocks onto ToolCallStart/InputDelta/End stream events, so the
// caller can act on a completed tool call before the stream finishes.
package anthropic

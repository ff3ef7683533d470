// Package google adapts the Google GenAI (Gemini) API to the ChatProvider
// interface. Gemini delivers function calls as whole parts rather than
// argument fragments, so a tool call surfaces as a ToolCallStart
// immediately followed by its ToolCallEnd.
package google

// Package openai adapts the OpenAI Chat Completions API to the ChatProvider
// interface. Streaming uses the SDK's ChatCompletionAccumulator and surfaces
// tool-call argument fragments as they arrive.
package openai

// Package tool provides a registry of callable tools for the agent loop.
//
// Each registered tool pairs a definition (name, description, JSON Schema
// parameters, capability tags) with a handler that executes it. The registry
// validates tool call arguments against the declared schema before the
// handler runs; validation failures are returned as error tool results so
// the model can correct the call on its next turn.
//
// Capability tags drive the approval flow: a tool carrying any capability
// beyond read-only access is classified as dangerous and requires an
// approval decision before Invoke is called. The registry itself does not
// gate execution; the orchestrator consults Tool.Dangerous and the approval
// gate first.
package tool

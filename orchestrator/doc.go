// Package orchestrator drives the conversation turn loop: it streams model
// output, intercepts every tool call, routes dangerous calls through the
// approval gate, feeds results back to the model, and persists the
// conversation after each completed message. All observable activity is
// pushed to the caller as events in real time.
package orchestrator

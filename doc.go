// Package opencrab provides the core types for an interactive coding agent:
// conversations, tool calls, streaming events, token usage, and the
// categorized error taxonomy shared by every subpackage.
//
// The package is intentionally small. Behavior lives in focused subpackages:
//
//   - [github.com/adolfousier/opencrab/gateway]: uniform streaming access to
//     LLM backends with credential selection, provider priority, and retry
//   - [github.com/adolfousier/opencrab/tool]: the tool registry with danger
//     classification and input validation
//   - [github.com/adolfousier/opencrab/approval]: human approval of dangerous
//     tool calls with a fail-closed timeout
//   - [github.com/adolfousier/opencrab/plan]: multi-step execution plans as
//     resumable state machines
//   - [github.com/adolfousier/opencrab/orchestrator]: the turn loop that ties
//     the above together
//   - [github.com/adolfousier/opencrab/session]: durable conversation, plan,
//     and cost persistence
//
// # Basic Usage
//
// Wire a gateway, registry, and orchestrator:
//
//	gw := gateway.New(cfg.GatewayConfig())
//
//	registry := tool.NewRegistry().Add(
//	    tool.ReadFileTool(),
//	    tool.WriteFileTool(),
//	)
//
//	gate := approval.NewGate()
//	store := session.NewMemoryStore()
//	orc := orchestrator.New(gw, registry, gate, store)
//
//	events, err := orc.Turn(ctx, sessionID, "rename the Widget type")
//	for ev := range events {
//	    // forward to the presentation layer
//	}
package opencrab

// Package agui maps orchestrator events onto the AG-UI protocol.
//
// AG-UI (Agent-User Interface) is an open, event-based protocol that
// standardizes how agents connect to user-facing applications. This package
// converts the engine's push events into AG-UI events and translates
// conversation messages in both directions, so any AG-UI-compatible
// frontend can render a turn and submit approval decisions.
//
// The package does not provide HTTP handlers or transports; pair the
// Mapper with the AG-UI SDK's SSE writer or any transport of your choice:
//
//	mapper := agui.NewMapper(threadID, runID)
//	ch, _ := orch.Turn(ctx, sessionID, input)
//	for ev := range ch {
//	    for _, out := range mapper.MapEvent(ev) {
//	        writeEvent(out)
//	    }
//	}
//
// A Mapper is not safe for concurrent use; create one per turn. The
// message conversion functions are stateless.
package agui

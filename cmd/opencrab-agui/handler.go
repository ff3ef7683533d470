package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	aguievents "github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"

	"github.com/adolfousier/opencrab/agui"
	"github.com/adolfousier/opencrab/approval"
	"github.com/adolfousier/opencrab/event"
	"github.com/adolfousier/opencrab/orchestrator"
	"github.com/adolfousier/opencrab/session"
)

// RunInput is the request body for the agent endpoint.
type RunInput struct {
	ThreadID string `json:"thread_id"`
	RunID    string `json:"run_id"`
	Message  string `json:"message"`
}

// TurnHandler runs turns and streams AG-UI events over SSE. Each AG-UI
// thread maps to one session, created on first use.
type TurnHandler struct {
	orch  *orchestrator.Orchestrator
	store session.Store

	mu       sync.Mutex
	sessions map[string]string // thread ID -> session ID
}

// NewTurnHandler creates a handler for the given orchestrator and store.
func NewTurnHandler(orch *orchestrator.Orchestrator, store session.Store) *TurnHandler {
	return &TurnHandler{
		orch:     orch,
		store:    store,
		sessions: make(map[string]string),
	}
}

// ServeHTTP handles POST requests to run a turn and stream events via SSE.
func (h *TurnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input RunInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if input.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if input.ThreadID == "" {
		input.ThreadID = aguievents.GenerateThreadID()
	}

	log := slog.With("thread_id", input.ThreadID, "run_id", input.RunID)

	sessionID, err := h.sessionFor(r.Context(), input.ThreadID)
	if err != nil {
		log.Error("session lookup failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported")
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	mapper := agui.NewMapper(input.ThreadID, input.RunID)

	events, err := h.orch.Turn(r.Context(), sessionID, input.Message)
	if err != nil {
		log.Error("turn failed to start", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Info("turn started", "session_id", sessionID)

	var eventCount int
	for e := range events {
		// Approval requests have no AG-UI equivalent; surface them as a
		// custom SSE event so frontends can POST /api/approval.
		if e.Type == event.ApprovalRequested {
			if err := writeApprovalSSE(w, flusher, e); err != nil {
				log.Error("failed to write approval event", "error", err)
				return
			}
			continue
		}

		for _, aguiEvent := range mapper.MapEvent(e) {
			eventCount++
			if err := writeSSE(w, flusher, aguiEvent); err != nil {
				log.Error("failed to write SSE event", "error", err, "event_type", aguiEvent.Type())
				return
			}
		}
	}

	log.Info("turn completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"events_sent", eventCount,
	)
}

func (h *TurnHandler) sessionFor(ctx context.Context, threadID string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if id, ok := h.sessions[threadID]; ok {
		return id, nil
	}
	ses, err := h.store.CreateSession(ctx, "thread "+threadID)
	if err != nil {
		return "", err
	}
	h.sessions[threadID] = ses.ID
	return ses.ID, nil
}

// writeSSE writes an AG-UI event in SSE format.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev aguievents.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), string(data)); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	flusher.Flush()
	return nil
}

func writeApprovalSSE(w io.Writer, flusher http.Flusher, e event.Event) error {
	payload, err := json.Marshal(map[string]string{
		"request_id": e.ApprovalID,
		"tool_name":  e.ToolCall.Name,
		"arguments":  e.ToolCall.Arguments,
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: APPROVAL_REQUESTED\ndata: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// ApprovalHandler resolves pending approval requests.
type ApprovalHandler struct {
	gate *approval.Gate
}

// NewApprovalHandler creates a handler for the given gate.
func NewApprovalHandler(gate *approval.Gate) *ApprovalHandler {
	return &ApprovalHandler{gate: gate}
}

// ServeHTTP handles POST requests carrying an approval decision.
func (h *ApprovalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := agui.HandleApprovalJSON(h.gate, body); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, approval.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, approval.ErrAlreadyResolved):
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"resolved"}`)
}

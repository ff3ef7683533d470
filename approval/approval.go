// Package approval gates dangerous tool calls behind an explicit decision.
//
// When the agent encounters a tool call whose tool carries a dangerous
// capability, it submits an approval request to a Gate and suspends that
// call until the request is approved, denied, or times out. The gate fails
// closed: an unresolved request past its deadline becomes TimedOut and the
// call is refused, and a decision arriving after resolution is rejected
// rather than applied.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	ai "github.com/adolfousier/opencrab"
)

// Decision is the state of an approval request.
type Decision string

const (
	// DecisionPending means no decision has been made yet.
	DecisionPending Decision = "pending"
	// DecisionApproved means the request was approved and the call may run.
	DecisionApproved Decision = "approved"
	// DecisionDenied means the request was denied and the call must not run.
	DecisionDenied Decision = "denied"
	// DecisionTimedOut means the deadline passed with no decision.
	DecisionTimedOut Decision = "timed_out"
)

// Resolved reports whether the decision is terminal.
func (d Decision) Resolved() bool {
	return d != DecisionPending
}

// Request is an approval request for a single tool call.
// Once resolved, a request never changes state again.
type Request struct {
	ID           string
	ToolCallID   string
	ToolName     string
	Arguments    string
	Capabilities []ai.Capability
	CreatedAt    time.Time
	Deadline     time.Time
	Decision     Decision
	Reason       string
	ResolvedAt   time.Time
}

// Sentinel errors returned by Resolve.
var (
	// ErrNotFound is returned when no request with the given ID exists.
	ErrNotFound = errors.New("approval: request not found")

	// ErrAlreadyResolved is returned when resolving a request that already
	// has a terminal decision. Late approvals never execute the call.
	ErrAlreadyResolved = errors.New("approval: request already resolved")
)

// Gate tracks approval requests and routes decisions to waiting callers.
// It is safe for concurrent use; independent tool calls may be pending
// at the same time.
type Gate struct {
	mu       sync.Mutex
	timeout  time.Duration
	requests map[string]*Request
	byCall   map[string]string // tool call ID -> request ID
	done     map[string]chan struct{}
	onSubmit func(Request)
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithTimeout sets the deadline applied to new requests.
// The default is 5 minutes.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.timeout = d
	}
}

// WithOnSubmit sets a callback invoked whenever a request is submitted.
// Useful for surfacing the request to a UI or log.
func WithOnSubmit(fn func(Request)) Option {
	return func(g *Gate) {
		g.onSubmit = fn
	}
}

// withClock overrides the time source for tests.
func withClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// NewGate creates an approval gate.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		timeout:  5 * time.Minute,
		requests: make(map[string]*Request),
		byCall:   make(map[string]string),
		done:     make(map[string]chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit creates a pending request for the given tool call.
// The request's deadline is the gate's timeout from now.
func (g *Gate) Submit(call ai.ToolCall, t ai.Tool) *Request {
	now := g.now()
	req := &Request{
		ID:           "apr-" + uuid.NewString(),
		ToolCallID:   call.ID,
		ToolName:     call.Name,
		Arguments:    call.Arguments,
		Capabilities: t.Capabilities,
		CreatedAt:    now,
		Deadline:     now.Add(g.timeout),
		Decision:     DecisionPending,
	}

	g.mu.Lock()
	g.requests[req.ID] = req
	g.byCall[call.ID] = req.ID
	g.done[req.ID] = make(chan struct{})
	g.mu.Unlock()

	if g.onSubmit != nil {
		g.onSubmit(*req)
	}
	return req
}

// Get returns a copy of the request with the given ID.
func (g *Gate) Get(id string) (Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.requests[id]
	if !ok {
		return Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *req, nil
}

// ByToolCall returns a copy of the request for the given tool call ID.
func (g *Gate) ByToolCall(toolCallID string) (Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.byCall[toolCallID]
	if !ok {
		return Request{}, fmt.Errorf("%w: tool call %s", ErrNotFound, toolCallID)
	}
	return *g.requests[id], nil
}

// Pending returns copies of all unresolved requests.
func (g *Gate) Pending() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	var pending []Request
	for _, req := range g.requests {
		if !req.Decision.Resolved() {
			pending = append(pending, *req)
		}
	}
	return pending
}

// PendingCount returns the number of unresolved requests.
func (g *Gate) PendingCount() int {
	return len(g.Pending())
}

// Resolve records a terminal decision for a pending request.
// Returns ErrNotFound if the request does not exist and ErrAlreadyResolved
// if it already has a terminal decision.
func (g *Gate) Resolve(id string, decision Decision, reason string) error {
	if !decision.Resolved() {
		return fmt.Errorf("approval: %q is not a terminal decision", decision)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveLocked(id, decision, reason)
}

func (g *Gate) resolveLocked(id string, decision Decision, reason string) error {
	req, ok := g.requests[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if req.Decision.Resolved() {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, id, req.Decision)
	}

	req.Decision = decision
	req.Reason = reason
	req.ResolvedAt = g.now()
	close(g.done[id])
	return nil
}

// Approve resolves a request as approved.
func (g *Gate) Approve(id string) error {
	return g.Resolve(id, DecisionApproved, "")
}

// Deny resolves a request as denied with an optional reason.
func (g *Gate) Deny(id, reason string) error {
	return g.Resolve(id, DecisionDenied, reason)
}

// ExpireOverdue marks every pending request whose deadline has passed as
// TimedOut and returns copies of the expired requests. The orchestrator
// runs this sweep between loop iterations.
//
// The sweep also drops requests that have been resolved for longer than the
// gate timeout, so a long-lived gate does not accumulate records. A decision
// arriving inside that window is rejected with ErrAlreadyResolved; after it,
// with ErrNotFound. Both refuse the late decision.
func (g *Gate) ExpireOverdue(now time.Time) []Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	var expired []Request
	for id, req := range g.requests {
		if req.Decision.Resolved() {
			if !now.Before(req.ResolvedAt.Add(g.timeout)) {
				// A fresh request for the same tool call may own the
				// byCall entry by now.
				if g.byCall[req.ToolCallID] == id {
					delete(g.byCall, req.ToolCallID)
				}
				delete(g.done, id)
				delete(g.requests, id)
			}
			continue
		}
		if now.Before(req.Deadline) {
			continue
		}
		if err := g.resolveLocked(id, DecisionTimedOut, "no decision before deadline"); err == nil {
			expired = append(expired, *req)
		}
	}
	return expired
}

// Wait blocks until the request is resolved, its deadline passes, or the
// context is cancelled, and returns the final request state.
//
// A deadline expiry resolves the request as TimedOut. Context cancellation
// resolves it as Denied; a cancelled turn must not leave approvals that
// could fire later.
func (g *Gate) Wait(ctx context.Context, id string) (Request, error) {
	g.mu.Lock()
	req, ok := g.requests[id]
	if !ok {
		g.mu.Unlock()
		return Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	done := g.done[id]
	deadline := req.Deadline
	g.mu.Unlock()

	timer := time.NewTimer(deadline.Sub(g.now()))
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		g.mu.Lock()
		// A decision may have landed between the timer firing and the
		// lock being taken; only then does the race matter.
		_ = g.resolveLocked(id, DecisionTimedOut, "no decision before deadline")
		g.mu.Unlock()
	case <-ctx.Done():
		g.mu.Lock()
		_ = g.resolveLocked(id, DecisionDenied, "turn cancelled")
		g.mu.Unlock()
	}

	return g.Get(id)
}

package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/adolfousier/opencrab"
)

func writeCall() (ai.ToolCall, ai.Tool) {
	call := ai.ToolCall{
		ID:        "call-1",
		Name:      "write_file",
		Arguments: `{"path":"x.txt","content":"hi"}`,
	}
	t := ai.Tool{
		Name:         "write_file",
		Capabilities: []ai.Capability{ai.CapabilityFileMutation},
	}
	return call, t
}

func TestGateSubmit(t *testing.T) {
	g := NewGate()
	call, tool := writeCall()

	req := g.Submit(call, tool)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "call-1", req.ToolCallID)
	assert.Equal(t, "write_file", req.ToolName)
	assert.Equal(t, DecisionPending, req.Decision)
	assert.Equal(t, 5*time.Minute, req.Deadline.Sub(req.CreatedAt))
	assert.Equal(t, 1, g.PendingCount())

	got, err := g.ByToolCall("call-1")
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
}

func TestGateOnSubmit(t *testing.T) {
	var seen []string
	g := NewGate(WithOnSubmit(func(req Request) {
		seen = append(seen, req.ToolName)
	}))
	call, tool := writeCall()
	g.Submit(call, tool)

	assert.Equal(t, []string{"write_file"}, seen)
}

func TestGateApprove(t *testing.T) {
	g := NewGate()
	call, tool := writeCall()
	req := g.Submit(call, tool)

	require.NoError(t, g.Approve(req.ID))

	got, err := g.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionApproved, got.Decision)
	assert.False(t, got.ResolvedAt.IsZero())
	assert.Equal(t, 0, g.PendingCount())
}

func TestGateDeny(t *testing.T) {
	g := NewGate()
	call, tool := writeCall()
	req := g.Submit(call, tool)

	require.NoError(t, g.Deny(req.ID, "not today"))

	got, err := g.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionDenied, got.Decision)
	assert.Equal(t, "not today", got.Reason)
}

func TestGateResolveErrors(t *testing.T) {
	g := NewGate()
	call, tool := writeCall()
	req := g.Submit(call, tool)

	assert.ErrorIs(t, g.Approve("apr-missing"), ErrNotFound)
	assert.Error(t, g.Resolve(req.ID, DecisionPending, ""))

	require.NoError(t, g.Approve(req.ID))
	assert.ErrorIs(t, g.Approve(req.ID), ErrAlreadyResolved)
	assert.ErrorIs(t, g.Deny(req.ID, "late"), ErrAlreadyResolved)

	// The original decision stands.
	got, err := g.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionApproved, got.Decision)
}

func TestGateWaitApproved(t *testing.T) {
	g := NewGate()
	call, tool := writeCall()
	req := g.Submit(call, tool)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, g.Approve(req.ID))
	}()

	got, err := g.Wait(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionApproved, got.Decision)
	wg.Wait()
}

func TestGateWaitTimeout(t *testing.T) {
	g := NewGate(WithTimeout(20 * time.Millisecond))
	call, tool := writeCall()
	req := g.Submit(call, tool)

	got, err := g.Wait(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionTimedOut, got.Decision)

	// A decision after timeout is rejected, it must not run the call.
	assert.ErrorIs(t, g.Approve(req.ID), ErrAlreadyResolved)
}

func TestGateWaitCancelled(t *testing.T) {
	g := NewGate()
	call, tool := writeCall()
	req := g.Submit(call, tool)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	got, err := g.Wait(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionDenied, got.Decision)
	assert.Equal(t, "turn cancelled", got.Reason)
}

func TestGateWaitUnknown(t *testing.T) {
	g := NewGate()
	_, err := g.Wait(context.Background(), "apr-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGateExpireOverdue(t *testing.T) {
	now := time.Now()
	clock := now
	g := NewGate(withClock(func() time.Time { return clock }))

	call, tool := writeCall()
	first := g.Submit(call, tool)

	clock = now.Add(time.Minute)
	second := g.Submit(ai.ToolCall{ID: "call-2", Name: "write_file"}, tool)

	// Only the first request is past its deadline.
	expired := g.ExpireOverdue(now.Add(5*time.Minute + time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, first.ID, expired[0].ID)
	assert.Equal(t, DecisionTimedOut, expired[0].Decision)

	got, err := g.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionPending, got.Decision)

	// A later sweep picks up the second one.
	expired = g.ExpireOverdue(now.Add(7 * time.Minute))
	require.Len(t, expired, 1)
	assert.Equal(t, second.ID, expired[0].ID)
}

func TestGateConcurrentRequests(t *testing.T) {
	g := NewGate()
	_, tool := writeCall()

	a := g.Submit(ai.ToolCall{ID: "call-a", Name: "write_file"}, tool)
	b := g.Submit(ai.ToolCall{ID: "call-b", Name: "write_file"}, tool)
	assert.Equal(t, 2, g.PendingCount())

	var wg sync.WaitGroup
	results := make(map[string]Decision)
	var mu sync.Mutex
	for _, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			got, err := g.Wait(context.Background(), id)
			require.NoError(t, err)
			mu.Lock()
			results[id] = got.Decision
			mu.Unlock()
		}(id)
	}

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, g.Approve(a.ID))
	require.NoError(t, g.Deny(b.ID, "no"))
	wg.Wait()

	assert.Equal(t, DecisionApproved, results[a.ID])
	assert.Equal(t, DecisionDenied, results[b.ID])
}

func TestGatePrunesResolvedRequests(t *testing.T) {
	now := time.Now()
	clock := now
	g := NewGate(withClock(func() time.Time { return clock }))

	call, tool := writeCall()
	req := g.Submit(call, tool)
	require.NoError(t, g.Approve(req.ID))

	// Inside the retention window the record survives and a late decision
	// gets the already-resolved rejection.
	g.ExpireOverdue(now.Add(time.Minute))
	got, err := g.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, DecisionApproved, got.Decision)
	assert.ErrorIs(t, g.Deny(req.ID, "too late"), ErrAlreadyResolved)

	// Past the window the record is dropped; a late decision is still
	// refused, now as not-found.
	g.ExpireOverdue(now.Add(5*time.Minute + time.Second))
	_, err = g.Get(req.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, g.Approve(req.ID), ErrNotFound)
	_, err = g.ByToolCall(call.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The same tool call can be submitted fresh afterwards.
	fresh := g.Submit(call, tool)
	assert.NotEqual(t, req.ID, fresh.ID)
	got, err = g.ByToolCall(call.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
}

func TestGatePruneKeepsNewerRequestForSameCall(t *testing.T) {
	now := time.Now()
	clock := now
	g := NewGate(withClock(func() time.Time { return clock }))

	call, tool := writeCall()
	first := g.Submit(call, tool)
	require.NoError(t, g.Deny(first.ID, "not yet"))

	// A fresh request for the same tool call takes over the byCall entry.
	clock = now.Add(4 * time.Minute)
	second := g.Submit(call, tool)

	// Pruning the first must not unmap the second.
	g.ExpireOverdue(now.Add(5*time.Minute + time.Second))
	got, err := g.ByToolCall(call.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

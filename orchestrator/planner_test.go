package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adolfousier/opencrab/event"
	"github.com/adolfousier/opencrab/plan"
	"github.com/adolfousier/opencrab/session"
)

func newTestPlanner(t *testing.T) (*Planner, string, chan event.Event) {
	t.Helper()
	store := session.NewMemoryStore()
	ses, err := store.CreateSession(context.Background(), "planner test")
	require.NoError(t, err)
	events := event.NewChannel()
	return NewPlanner(store, events), ses.ID, events
}

func drainEvents(ch chan event.Event) []event.Event {
	var out []event.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func planStatuses(events []event.Event) []string {
	var out []string
	for _, e := range events {
		if e.Type == event.PlanStatusChanged {
			out = append(out, e.PlanStatus)
		}
	}
	return out
}

func TestPlannerProposeAndApprove(t *testing.T) {
	p, sessionID, events := newTestPlanner(t)
	ctx := context.Background()

	snap, err := p.Propose(ctx, sessionID, "add caching", []plan.Task{
		{ID: "a", Title: "read code", Type: plan.TaskResearch, Complexity: 1},
		{ID: "b", Title: "write cache", Type: plan.TaskCreate, Complexity: 3, Dependencies: []string{"a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, plan.StatusPendingApproval, snap.Status)
	assert.Equal(t, []string{"a", "b"}, snap.Order)

	require.NoError(t, p.Approve(ctx, sessionID))
	require.NoError(t, p.Start(ctx, sessionID))

	saved, err := p.Plan(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusInProgress, saved.Status)

	statuses := planStatuses(drainEvents(events))
	assert.Equal(t, []string{
		string(plan.StatusPendingApproval),
		string(plan.StatusApproved),
		string(plan.StatusInProgress),
	}, statuses)
}

func TestPlannerProposeCycleSavesNothing(t *testing.T) {
	p, sessionID, events := newTestPlanner(t)
	ctx := context.Background()

	_, err := p.Propose(ctx, sessionID, "circular", []plan.Task{
		{ID: "a", Title: "first", Type: plan.TaskEdit, Complexity: 1, Dependencies: []string{"b"}},
		{ID: "b", Title: "second", Type: plan.TaskEdit, Complexity: 1, Dependencies: []string{"a"}},
	})

	var integrity *plan.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.NotEmpty(t, integrity.Cycle)

	_, err = p.Plan(ctx, sessionID)
	assert.ErrorIs(t, err, session.ErrNoPlan)
	assert.Empty(t, drainEvents(events))
}

func TestPlannerTaskDependencyGating(t *testing.T) {
	p, sessionID, events := newTestPlanner(t)
	ctx := context.Background()

	_, err := p.Propose(ctx, sessionID, "two steps", []plan.Task{
		{ID: "a", Title: "first", Type: plan.TaskEdit, Complexity: 1},
		{ID: "b", Title: "second", Type: plan.TaskTest, Complexity: 2, Dependencies: []string{"a"}},
	})
	require.NoError(t, err)
	require.NoError(t, p.Approve(ctx, sessionID))
	require.NoError(t, p.Start(ctx, sessionID))

	err = p.StartTask(ctx, sessionID, "b")
	var blocked *plan.BlockedByDependencyError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, []string{"a"}, blocked.Unmet)

	require.NoError(t, p.StartTask(ctx, sessionID, "a"))
	require.NoError(t, p.CompleteTask(ctx, sessionID, "a"))
	require.NoError(t, p.StartTask(ctx, sessionID, "b"))
	require.NoError(t, p.CompleteTask(ctx, sessionID, "b"))

	saved, err := p.Plan(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCompleted, saved.Status)

	all := drainEvents(events)
	statuses := planStatuses(all)
	assert.Equal(t, string(plan.StatusCompleted), statuses[len(statuses)-1])

	var taskEvents int
	for _, e := range all {
		if e.Type == event.TaskStatusChanged {
			taskEvents++
			assert.NotEmpty(t, e.TaskID)
		}
	}
	assert.Equal(t, 4, taskEvents)
}

func TestPlannerSkipUnblocksDependents(t *testing.T) {
	p, sessionID, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := p.Propose(ctx, sessionID, "optional first", []plan.Task{
		{ID: "a", Title: "optional", Type: plan.TaskResearch, Complexity: 1},
		{ID: "b", Title: "main", Type: plan.TaskEdit, Complexity: 2, Dependencies: []string{"a"}},
	})
	require.NoError(t, err)
	require.NoError(t, p.Approve(ctx, sessionID))
	require.NoError(t, p.Start(ctx, sessionID))

	require.NoError(t, p.SkipTask(ctx, sessionID, "a"))
	require.NoError(t, p.StartTask(ctx, sessionID, "b"))
}

func TestPlannerRequestChangesReturnsToDraft(t *testing.T) {
	p, sessionID, _ := newTestPlanner(t)
	ctx := context.Background()

	_, err := p.Propose(ctx, sessionID, "draft me", []plan.Task{
		{ID: "a", Title: "work", Type: plan.TaskEdit, Complexity: 1},
	})
	require.NoError(t, err)

	require.NoError(t, p.RequestChanges(ctx, sessionID))

	saved, err := p.Plan(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusDraft, saved.Status)

	err = p.Start(ctx, sessionID)
	var transition *plan.TransitionError
	assert.ErrorAs(t, err, &transition)
}

func TestPlannerNoPlan(t *testing.T) {
	p, sessionID, _ := newTestPlanner(t)

	err := p.Approve(context.Background(), sessionID)
	assert.ErrorIs(t, err, session.ErrNoPlan)
}
